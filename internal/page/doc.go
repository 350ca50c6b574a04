// Package page models paginated query results and the navigation rules
// between pages.
//
// Two kinds of page exist. Cursor pages are positioned by an opaque keyset
// cursor (After or Before) and have no absolute page number. Offset pages
// are positioned by a row offset and support numbered and last-page links
// once the total count is known.
//
// LinkParams computes the options that request a neighbouring page, or
// reports that the target is unreachable. FromParams and Params convert
// between options and the flat string map used in URLs.
package page
