// Package capture provides the image sources a wait.Waiter polls.
//
// [Screen] grabs a display through the platform screenshot API and [File]
// re-reads an image from disk on every poll, which lets tests and scripted
// pipelines drive the same waiting logic without a desktop session.
package capture
