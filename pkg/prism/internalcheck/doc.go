// Package internalcheck holds source-level policy tests for the prism
// packages: secret-dependent byte comparisons go through crypto/subtle, and
// format strings never hex-dump values.
//
// The package has no API. Its tests load the module's packages with
// golang.org/x/tools/go/packages and walk their syntax trees.
package internalcheck
