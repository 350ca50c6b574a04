// Package ir holds the value model shared by every other package:
// sealed field values, records, primary-key tuples and compiled live
// declarations.
//
// ir imports nothing internal. Other packages build on it.
//
// Key constraints:
//   - No float kind. Keys and cursors must compare exactly.
//   - IRValues have a total order (Compare) so composite primary keys can
//     be sorted, indexed and compared without reflection.
//   - MarshalCanonical is the single encoding for index strings, cursors
//     and golden output.
//   - JSON tags use snake_case.
package ir
