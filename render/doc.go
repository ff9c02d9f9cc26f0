// Package render coordinates asynchronous renders.
//
// A Job moves created -> polling -> succeeded|failed|timed_out. Only a
// "pending" (or still "created") remote status is retried; remote rejections
// surface immediately as typed API errors. Polling never sleeps past the
// deadline, and the deadline is bounds-checked before any request.
package render
