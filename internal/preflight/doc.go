// Package preflight provides readiness checks for external services
// and filesystem paths that Carousel depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to start the workflow
//     when a check fails, rather than begin an import that cannot finish.
//   - The CLI "carousel status" command uses individual check functions
//     (CheckImmichFromConfig, CheckDirectoryAccess) to display service health.
package preflight
