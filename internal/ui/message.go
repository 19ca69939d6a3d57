package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg   = Msg{}
	_ list.Item = sessionItem{}
)

const (
	MsgSessionsFetched MsgKind = iota
	MsgProgressUpdate
	MsgUploadComplete
)

type sessionsFetched struct {
	sessions []models.Session
	err      error
}

type uploadComplete struct {
	outcome *tasks.BatchOutcome
	batchID string
	err     error
}

// sessionsFetchedMsg is the constructor for [MsgSessionsFetched]
func sessionsFetchedMsg(sessions []models.Session, err error) Msg {
	return Msg{kind: MsgSessionsFetched, data: sessionsFetched{sessions, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// uploadCompleteMsg is the constructor for [MsgUploadComplete]
func uploadCompleteMsg(done uploadComplete) Msg {
	return Msg{kind: MsgUploadComplete, data: done}
}

// sessionItem wraps [models.Session] to implement [list.Item].
type sessionItem struct {
	session models.Session
}

func (i sessionItem) FilterValue() string { return i.session.CustomerName + " " + i.session.ID }
func (i sessionItem) Title() string       { return i.session.DisplayName() }
func (i sessionItem) Description() string {
	desc := fmt.Sprintf("%s • %d photos", i.session.ID, i.session.PhotoCount)
	if i.session.Status != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.session.Status)
	}
	return desc
}
