/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRoomNotFound    = errors.New("Room not found")
	ErrGameInProgress  = errors.New("Game already in progress")
	ErrPlayerNotFound  = errors.New("Player not found")
	ErrNotHost         = errors.New("Only the host can do that")
	ErrImagesNotSynced = errors.New("Images not synced yet")

	ErrInvalidCommand = errors.New("Invalid command")
	ErrImagesLocked   = errors.New("Images already submitted")
	ErrInvalidBatch   = errors.New("Invalid batch index")
	ErrInvalidRound   = errors.New("Invalid round")
)

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
