/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength = 24
	maxIDLength   = 64
)

type CommandType string

// Commands sent by clients
const (
	CmdCreateRoom   CommandType = "create-room"
	CmdJoinRoom     CommandType = "join-room"
	CmdReconnect    CommandType = "reconnect-to-room"
	CmdUpdateName   CommandType = "update-name"
	CmdSubmitImages CommandType = "submit-images"
	CmdImagesSynced CommandType = "images-synced"
	CmdStartGame    CommandType = "start-game"
	CmdSubmitGuess  CommandType = "submit-guess"
	CmdNewGame      CommandType = "new-game"
)

// Events sent to clients
const (
	EvtRoomCreated    = "room-created"
	EvtJoinedRoom     = "joined-room"
	EvtReconnected    = "reconnected"
	EvtRoomUpdated    = "room-updated"
	EvtSyncProgress   = "sync-progress"
	EvtSyncImageBatch = "sync-image-batch"
	EvtSyncComplete   = "sync-complete"
	EvtRoundStarted   = "round-started"
	EvtRoundResults   = "round-results"
	EvtGameOver       = "game-over"
	EvtPlayerLeft     = "player-left"
	EvtNewGameStarted = "new-game-started"
	EvtRoomClosed     = "room-closed"
	EvtGuessReceived  = "guess-received"
	EvtAck            = "ack"
	EvtError          = "error"
)

// Envelope is every frame written to a client. ID echoes the correlation id
// of the command a reply answers and is empty on broadcasts.
type Envelope struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

type inboundFrame struct {
	Type    CommandType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command is a decoded and validated client request. Payload holds the
// pointer type registered for Type in payloadFor.
type Command struct {
	Type    CommandType
	ID      string
	Payload any
}

type limits struct {
	maxImageSize int
}

type validator interface {
	validate(lim limits) error
}

type CreateRoomPayload struct {
	Name string `json:"name,omitempty"`
}

type JoinRoomPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type ReconnectPayload struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
}

type UpdateNamePayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type SubmitImagesPayload struct {
	Code   string   `json:"code"`
	Images []string `json:"images"`
}

type ImagesSyncedPayload struct {
	Code       string `json:"code"`
	BatchIndex *int   `json:"batchIndex"`
}

type StartGamePayload struct {
	Code string `json:"code"`
}

type SubmitGuessPayload struct {
	Code           string `json:"code"`
	RoundIndex     *int   `json:"roundIndex"`
	GuessedOwnerID string `json:"guessedOwnerId"`
}

type NewGamePayload struct {
	Code string `json:"code"`
}

func payloadFor(t CommandType) (validator, bool) {
	switch t {
	case CmdCreateRoom:
		return &CreateRoomPayload{}, true
	case CmdJoinRoom:
		return &JoinRoomPayload{}, true
	case CmdReconnect:
		return &ReconnectPayload{}, true
	case CmdUpdateName:
		return &UpdateNamePayload{}, true
	case CmdSubmitImages:
		return &SubmitImagesPayload{}, true
	case CmdImagesSynced:
		return &ImagesSyncedPayload{}, true
	case CmdStartGame:
		return &StartGamePayload{}, true
	case CmdSubmitGuess:
		return &SubmitGuessPayload{}, true
	case CmdNewGame:
		return &NewGamePayload{}, true
	}
	return nil, false
}

// decodeCommand parses one inbound frame. The returned Command carries the
// correlation id even when an error is returned, when one could be read.
func decodeCommand(data []byte, lim limits) (Command, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	cmd := Command{Type: frame.Type, ID: frame.ID}

	if len(frame.ID) > maxIDLength {
		cmd.ID = ""
		return cmd, fmt.Errorf("%w: correlation id too long", ErrInvalidCommand)
	}

	payload, ok := payloadFor(frame.Type)
	if !ok {
		return cmd, fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, frame.Type)
	}

	if len(frame.Payload) > 0 && string(frame.Payload) != "null" {
		if err := json.Unmarshal(frame.Payload, payload); err != nil {
			return cmd, fmt.Errorf("%w: %s payload: %v", ErrInvalidCommand, frame.Type, err)
		}
	}

	if err := payload.validate(lim); err != nil {
		return cmd, err
	}

	cmd.Payload = payload
	return cmd, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidCommand}, args...)...)
}

func checkCode(code *string) error {
	*code = normalizeCode(*code)
	if !validCode(*code) {
		return invalid("room code must be %d characters", codeLength)
	}
	return nil
}

func checkName(name *string) error {
	*name = strings.TrimSpace(*name)
	n := utf8.RuneCountInString(*name)
	if n < 1 || n > maxNameLength {
		return invalid("name must be 1-%d characters", maxNameLength)
	}
	return nil
}

func (p *CreateRoomPayload) validate(limits) error {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = ""
		return nil
	}
	return checkName(&p.Name)
}

func (p *JoinRoomPayload) validate(limits) error {
	if err := checkCode(&p.Code); err != nil {
		return err
	}
	return checkName(&p.Name)
}

func (p *ReconnectPayload) validate(limits) error {
	if err := checkCode(&p.Code); err != nil {
		return err
	}
	if p.PlayerID == "" || len(p.PlayerID) > maxIDLength {
		return invalid("missing player id")
	}
	return nil
}

func (p *UpdateNamePayload) validate(limits) error {
	if p.Code != "" {
		if err := checkCode(&p.Code); err != nil {
			return err
		}
	}
	return checkName(&p.Name)
}

func (p *SubmitImagesPayload) validate(lim limits) error {
	if err := checkCode(&p.Code); err != nil {
		return err
	}
	if len(p.Images) != imagesPerPlayer {
		return invalid("exactly %d images are required, got %d", imagesPerPlayer, len(p.Images))
	}
	for i, img := range p.Images {
		if img == "" {
			return invalid("image %d is empty", i)
		}
		if lim.maxImageSize > 0 && len(img) > lim.maxImageSize {
			return invalid("image %d is larger than %d bytes", i, lim.maxImageSize)
		}
	}
	return nil
}

func (p *ImagesSyncedPayload) validate(limits) error {
	if err := checkCode(&p.Code); err != nil {
		return err
	}
	if p.BatchIndex == nil || *p.BatchIndex < 0 {
		return invalid("missing or negative batch index")
	}
	return nil
}

func (p *StartGamePayload) validate(limits) error {
	return checkCode(&p.Code)
}

func (p *SubmitGuessPayload) validate(limits) error {
	if err := checkCode(&p.Code); err != nil {
		return err
	}
	if p.RoundIndex == nil || *p.RoundIndex < 0 {
		return invalid("missing or negative round index")
	}
	if p.GuessedOwnerID == "" || len(p.GuessedOwnerID) > maxIDLength {
		return invalid("missing guessed owner id")
	}
	return nil
}

func (p *NewGamePayload) validate(limits) error {
	return checkCode(&p.Code)
}

type RoomJoinedEvent struct {
	Code     string   `json:"code"`
	PlayerID string   `json:"playerId"`
	Room     RoomView `json:"room"`
}

type ReconnectedEvent struct {
	Code       string             `json:"code"`
	PlayerID   string             `json:"playerId"`
	Room       RoomView           `json:"room"`
	GameState  GameState          `json:"gameState"`
	Round      *RoundStartedEvent `json:"round,omitempty"`
	HasGuessed bool               `json:"hasGuessed,omitempty"`
}

type PlayerSync struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Synced int    `json:"synced"`
	Total  int    `json:"total"`
}

type SyncProgressEvent struct {
	Progress int          `json:"progress"`
	Players  []PlayerSync `json:"players"`
}

type SyncImageBatchEvent struct {
	BatchIndex   int    `json:"batchIndex"`
	TotalBatches int    `json:"totalBatches"`
	Image        string `json:"image"`
}

type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoundStartedEvent struct {
	Image       string        `json:"image"`
	RoundIndex  int           `json:"roundIndex"`
	TotalRounds int           `json:"totalRounds"`
	Players     []RosterEntry `json:"players"`
}

type GuessResult struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	GuessedID string `json:"guessedId"`
	Correct   bool   `json:"correct"`
	Points    int    `json:"points"`
}

type ScoreEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type RoundResultsEvent struct {
	RoundIndex   int           `json:"roundIndex"`
	CorrectOwner RosterEntry   `json:"correctOwner"`
	Results      []GuessResult `json:"results"`
	Scoreboard   []ScoreEntry  `json:"scoreboard"`
	IsLastRound  bool          `json:"isLastRound"`
}

type GameOverEvent struct {
	Winner          ScoreEntry   `json:"winner"`
	FinalScoreboard []ScoreEntry `json:"finalScoreboard"`
}

type PlayerLeftEvent struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type RoomClosedEvent struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type AckPayload struct {
	Success bool `json:"success"`
}

type GuessReceivedEvent struct {
	RoundIndex int `json:"roundIndex"`
}
