// Package ui implements an interactive upload screen using bubbletea's Elm architecture.
//
// The TUI walks through one batch upload:
//  1. [SessionListView] : Browse sessions and pick the destination
//  2. [ConfirmView] : Review the files about to be sent
//  3. [UploadView] : Watch aggregate progress while files upload concurrently
//  4. [ResultView] : See the batch status and every failed file
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Progress flows from the UploadEngine through [tasks.ChannelSink], so a slow redraw never stalls an upload.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
