// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	gomaxecs "github.com/rdforte/gomaxecs/maxprocs"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cardinalhq/lakescanner/cmd"
)

func stderrf(msg string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, msg+"\n", args...)
}

func init() {
	time.Local = time.UTC

	// Scans run as one-shot containers, often on ECS, so size the runtime
	// to the task limits rather than the host.
	if gomaxecs.IsECS() {
		if _, err := gomaxecs.Set(gomaxecs.WithLogger(stderrf)); err != nil {
			stderrf("failed to set GOMAXPROCS from ECS task metadata: %v", err)
		}
	} else if _, err := maxprocs.Set(maxprocs.Logger(stderrf)); err != nil {
		stderrf("failed to set GOMAXPROCS from cgroup quota: %v", err)
	}

	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.8),
		memlimit.WithLogger(slog.Default()),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	); err != nil {
		stderrf("failed to set GOMEMLIMIT: %v", err)
	}

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(50)
		_ = os.Setenv("GOGC", "50")
	}
}

// useScratchDir points TMPDIR at a lakescanner subdirectory so DuckDB spill
// files and downloaded ORC parts are easy to find and clean up.
func useScratchDir() {
	dir := filepath.Join(os.TempDir(), "lakescanner")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("Failed to create scratch dir, using default temp dir", slog.String("path", dir), slog.Any("error", err))
		return
	}
	if err := os.Setenv("TMPDIR", dir); err != nil {
		slog.Warn("Failed to set TMPDIR", slog.String("path", dir), slog.Any("error", err))
		return
	}
	slog.Debug("Using scratch dir", slog.String("path", os.TempDir()))
}

func main() {
	useScratchDir()
	cmd.Execute()
}
