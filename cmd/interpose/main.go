// Interpose builds interception receivers from recipe manifests and
// inspects how their calls dispatch.
//
// Usage:
//
//	# Check that a manifest parses and its recipes build
//	interpose validate recipes.yaml
//
//	# Show the resolved handler chain of every method of a recipe
//	interpose explain recipes.yaml --recipe person
//
//	# Drive concurrent calls through a recipe and report cache behavior
//	interpose bench --manifest recipes.yaml --recipe person --workers 8
//
//	# Run with hot reload, scheduled maintenance and admin endpoints
//	interpose serve --manifest recipes.yaml --admin-addr :9090
//
//	# Show version information
//	interpose version
package main

func main() {
	Execute()
}
