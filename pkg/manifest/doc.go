// Package manifest builds recipes from a YAML manifest and keeps them
// current while the file changes.
//
// A manifest names recipes by the contracts they implement and the features
// they combine:
//
//	recipes:
//	  - name: person
//	    contracts: [Person]
//	    features:
//	      - name: beanstore
//	        options: {mode: abstract}
//	      - name: calllog
//	        options: {label: audit, level: debug}
//	      - tracing
//
// Contract and feature names resolve through a Catalog. The program
// registers its contracts; RegisterStandardFeatures adds the features shipped
// with interpose.
//
// Manager holds the current Set behind an atomic pointer. Reload builds a
// new Set and swaps it in only if every recipe builds. After a swap the
// retired recipes forget their verified state types and the shared dispatch
// cache is cleared, so no chain resolved against the old rules is reused.
// Watch drives Reload from fsnotify events on the manifest file, debounced
// so that one save triggers one reload.
package manifest
