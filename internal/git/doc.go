// Package git checks whether a plaintext export landed somewhere git could
// pick it up.
//
// Checks performed:
//   - Whether the export directory is inside a work tree
//   - Whether the export file is tracked by git (should not be)
//   - Whether the export file is in .gitignore (should be)
package git
