// Package config parses the driver's preferences file, following the
// AmigaOS "ENV:genet.prefs" KEY=VALUE convention.
//
// Grounded on original_source/runtime_config.c: case-insensitive keys,
// unknown keys ignored, malformed values fall back to the compile-time
// default, re-implemented over bufio.Scanner instead of a hand-rolled
// line/field scanner.
package config

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rondoval/emu68-genet-driver/driver"
)

// Load reads KEY=VALUE preference lines from r into a copy of
// driver.DefaultOptions(), applying only the recognised, well-formed
// overrides found.
func Load(r io.Reader) driver.Options {
	opts := driver.DefaultOptions()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" || val == "" {
			continue
		}

		applyKey(&opts, strings.ToUpper(key), val)
	}

	return opts
}

func applyKey(opts *driver.Options, key, val string) {
	switch key {
	case "USE_DMA":
		if v, ok := parseNonNegativeInt(val); ok {
			opts.UseDMA = v != 0
		}
	case "USE_MIAMI_WORKAROUND":
		if v, ok := parseNonNegativeInt(val); ok {
			opts.UseMiamiWorkaround = v != 0
		}
	case "TX_PENDING_FAST_TICKS":
		if v, ok := parseNonNegativeInt(val); ok {
			opts.TxPendingFastTicks = v
		}
	case "TX_RECLAIM_SOFT_US":
		if v, ok := parseNonNegativeInt(val); ok {
			opts.TxReclaimSoftUS = v
		}
	case "RX_POLL_BURST":
		if v, ok := parseNonNegativeInt(val); ok {
			opts.RxPollBurst = v
		}
	case "RX_POLL_BURST_IDLE_BREAK":
		if v, ok := parseNonNegativeInt(val); ok {
			opts.RxPollBurstIdleBreak = v
		}
	case "POLL_DELAY_US":
		if ladder := parsePollDelayList(val); len(ladder) > 0 {
			opts.PollDelayUS = ladder
		}
	// UNIT_TASK_PRIORITY and UNIT_STACK_SIZE have no Go-rewrite analogue
	// (no bare-metal task priority or fixed stack size in a goroutine-based
	// unit task); recognised and ignored rather than rejected, matching
	// the original's "unknown keys are ignored" fallback behavior.
	case "UNIT_TASK_PRIORITY", "UNIT_STACK_SIZE":
	}
}

func parseNonNegativeInt(val string) (int, bool) {
	v, err := strconv.Atoi(val)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func parsePollDelayList(val string) []int {
	var ladder []int
	for _, tok := range strings.Split(val, ",") {
		v, ok := parseNonNegativeInt(strings.TrimSpace(tok))
		if !ok {
			continue
		}
		ladder = append(ladder, v)
	}
	return ladder
}
