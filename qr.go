/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// joinURL is the address a phone camera should open to join the room.
func joinURL(cfg *Config, r *http.Request, code string) string {
	scheme := cfg.scheme()
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     cfg.prefix + "/",
		RawQuery: url.Values{"room": {code}}.Encode(),
	}

	return u.String()
}

func serveRoomQR(cfg *Config, e *Engine, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		code := normalizeCode(ps.ByName("code"))
		if !validCode(code) {
			http.Error(w, "invalid room code", http.StatusBadRequest)
			return
		}

		if !e.RoomExists(code) {
			http.Error(w, ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(joinURL(cfg, r, code), qrcode.Medium, qrSize)
		if err != nil {
			log.Error().Err(err).Str("room", code).Msg("SERVE: QR generation failed")
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))

		written, err := w.Write(png)
		if err != nil {
			log.Warn().Err(err).Str("room", code).Msg("SERVE: QR write failed")
			return
		}

		log.Info().Str("room", code).Msgf("SERVE: Room QR (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
