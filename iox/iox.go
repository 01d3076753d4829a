// Package iox provides small I/O cleanup helpers.
package iox

import "io"

// DiscardClose closes c, ignoring the error. For defer sites where a close
// failure is unactionable:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DiscardErr calls fn and ignores the returned error. For cleanup calls other
// than Close (e.g. a csv.Writer Flush after an earlier write error):
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }
