// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package log implements the repository-wide leveled, key/value logger used
// by every subsystem (consensus, probe, and the JIT mid-end alike). It is
// deliberately small: a Logger wraps a set of context key/value pairs and a
// Handler that formats and writes records, mirroring the log15-derived
// logger go-ethereum ships as its own "log" package.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Lvl is a log severity level, ordered from most to least severe.
type Lvl int

const (
	LvlError Lvl = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// Record is a single emitted log line.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
}

// Handler formats and writes a Record.
type Handler interface {
	Log(r *Record) error
}

// Logger is a leveled, key/value logger carrying a fixed context.
type Logger interface {
	New(ctx ...interface{}) Logger
	SetHandler(h Handler)

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

type swapHandler struct {
	mu sync.RWMutex
	h  Handler
}

func (s *swapHandler) Log(r *Record) error {
	s.mu.RLock()
	h := s.h
	s.mu.RUnlock()
	return h.Log(r)
}

func (s *swapHandler) swap(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

// New creates a new Logger with the given context key/value pairs appended
// to the root logger's context.
func New(ctx ...interface{}) Logger {
	return root.New(ctx...)
}

func (l *logger) New(ctx ...interface{}) Logger {
	child := make([]interface{}, 0, len(l.ctx)+len(ctx))
	child = append(child, l.ctx...)
	child = append(child, ctx...)
	return &logger{ctx: child, h: l.h}
}

func (l *logger) SetHandler(h Handler) { l.h.swap(h) }

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)
	l.h.Log(&Record{Time: time.Now(), Lvl: lvl, Msg: msg, Ctx: all})
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

// StreamHandler writes human-readable records to w, filtering by minimum
// severity (records with Lvl > maxLvl, i.e. less severe, are dropped).
type StreamHandler struct {
	mu     sync.Mutex
	w      io.Writer
	maxLvl Lvl
}

// NewStreamHandler creates a Handler writing to w.
func NewStreamHandler(w io.Writer, maxLvl Lvl) *StreamHandler {
	return &StreamHandler{w: w, maxLvl: maxLvl}
}

func (h *StreamHandler) Log(r *Record) error {
	if r.Lvl > h.maxLvl {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.w, "%s[%s] %s", r.Time.Format("15:04:05.000"), r.Lvl, r.Msg)
	for i := 0; i+1 < len(r.Ctx); i += 2 {
		fmt.Fprintf(h.w, " %v=%v", r.Ctx[i], r.Ctx[i+1])
	}
	fmt.Fprintln(h.w)
	return nil
}

// DiscardHandler silently drops every record; used by default for
// categories that haven't been explicitly enabled.
type DiscardHandler struct{}

func (DiscardHandler) Log(*Record) error { return nil }

var rootHandler = &swapHandler{h: NewStreamHandler(os.Stderr, LvlInfo)}
var root Logger = &logger{h: rootHandler}

// Root returns the root logger.
func Root() Logger { return root }

func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
