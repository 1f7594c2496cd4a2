// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"context"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/fileflows"
)

// RuleEnv is the evaluation environment for protect expressions. Expression
// fields are matched by name, so renaming one is a breaking config change.
type RuleEnv struct {
	Name            string  `expr:"Name"`
	Category        string  `expr:"Category"`
	Tags            string  `expr:"Tags"`
	Tracker         string  `expr:"Tracker"`
	Ratio           float64 `expr:"Ratio"`
	SeedingTimeDays float64 `expr:"SeedingTimeDays"`
	IsPrivate       bool    `expr:"IsPrivate"`
	State           string  `expr:"State"`
}

// CompileProtectRule compiles a protect expression. An empty expression
// yields a nil program, meaning no rule is active.
func CompileProtectRule(code string) (*vm.Program, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	program, err := expr.Compile(code, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return nil, errors.Wrap(err, "compile protect expression")
	}
	return program, nil
}

// Guard decides whether a deletion candidate must be left alone. It combines
// the optional protect expression with the FileFlows processing set; either
// one claiming the torrent protects it.
type Guard struct {
	rule      *vm.Program
	fileflows *fileflows.Client

	// filesFn resolves a torrent's file paths for name matching against the
	// processing set. Looked up lazily because only emitted candidates reach
	// the guard.
	filesFn func(ctx context.Context, hash string) ([]string, error)
}

func NewGuard(rule *vm.Program, ff *fileflows.Client, filesFn func(ctx context.Context, hash string) ([]string, error)) *Guard {
	return &Guard{
		rule:      rule,
		fileflows: ff,
		filesFn:   filesFn,
	}
}

// Refresh rebuilds the FileFlows processing set. Called once per cycle; a
// failed rebuild keeps the previous set active.
func (g *Guard) Refresh(ctx context.Context) {
	if g == nil || g.fileflows == nil || !g.fileflows.Enabled() {
		return
	}

	if err := g.fileflows.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("cleanup: could not refresh processing set, keeping last known set")
	}
}

// Protects reports whether any protection source claims the torrent.
func (g *Guard) Protects(ctx context.Context, item Item) bool {
	if g == nil {
		return false
	}

	if g.ruleProtects(item) {
		return true
	}
	return g.processingProtects(ctx, item)
}

func (g *Guard) ruleProtects(item Item) bool {
	if g.rule == nil {
		return false
	}

	env := RuleEnv{
		Name:            item.Name,
		Category:        item.Category,
		Tags:            item.Tags,
		Tracker:         item.Tracker,
		Ratio:           item.Ratio,
		SeedingTimeDays: item.SeedingDays(),
		IsPrivate:       item.Private,
		State:           string(item.State),
	}

	out, err := expr.Run(g.rule, env)
	if err != nil {
		// Fail closed: an evaluation error must not expose the torrent.
		log.Error().Err(err).Str("name", truncateName(item.Name)).Msg("cleanup: protect expression failed, treating torrent as protected")
		return true
	}

	matched, ok := out.(bool)
	if !ok {
		return false
	}
	if matched {
		log.Debug().Str("name", truncateName(item.Name)).Msg("cleanup: protected by expression")
	}
	return matched
}

func (g *Guard) processingProtects(ctx context.Context, item Item) bool {
	if g.fileflows == nil || !g.fileflows.Enabled() || g.filesFn == nil {
		return false
	}

	paths, err := g.filesFn(ctx, item.Hash)
	if err != nil {
		// Fail closed here too: without the file list there is no way to
		// prove the torrent is not being processed.
		log.Warn().Err(err).Str("name", truncateName(item.Name)).Msg("cleanup: could not list torrent files, treating torrent as protected")
		return true
	}

	return g.fileflows.IsProtected(paths)
}
