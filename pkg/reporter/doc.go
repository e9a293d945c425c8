// Package reporter periodically pulls accumulated global driver stats for
// upstream reporting.
package reporter
