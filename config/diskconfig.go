// Package config implements §4.K: the mfshdd.cfg line grammar for per-disk
// configuration, the named daemon settings of §6, reload/reinit semantics,
// and the .metaid/.lock per-folder identity lifecycle. Grounded on the
// teacher's config loading style (modules/host's persist.LoadJSON for
// structured state, plus Sia's siad flag/env parsing for scalar settings)
// adapted to this system's line-oriented, sigil-prefixed disk list instead
// of JSON or flags.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/moosefs/chunkserver/folder"
)

// DiskEntry is one parsed line of mfshdd.cfg.
type DiskEntry struct {
	Path           string
	MarkForRemoval bool
	IgnoreSize     bool
	ForceDst       bool
	ForceSrc       bool
	LimitMode      folder.LimitMode
	LimitData      uint64
}

// ParseDiskConfig reads mfshdd.cfg-formatted lines from r.
func ParseDiskConfig(r io.Reader) ([]DiskEntry, error) {
	var entries []DiskEntry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		e, err := ParseDiskLine(line)
		if err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// stripComment removes a trailing '#' or ';' comment, matching §4.K's
// "whitespace trim, semicolon/hash comment" grammar.
func stripComment(line string) string {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		return line[:i]
	}
	return line
}

// ParseDiskLine parses one non-empty, non-comment mfshdd.cfg line per the
// §4.K grammar: leading sigils, a path, then an optional '='-prefixed,
// optionally '-'-signed, optionally unit-suffixed limit value.
func ParseDiskLine(line string) (DiskEntry, error) {
	var e DiskEntry
	i := 0
sigilLoop:
	for i < len(line) {
		switch line[i] {
		case '*':
			e.MarkForRemoval = true
			i++
		case '~':
			e.IgnoreSize = true
			i++
		case '>':
			e.ForceDst = true
			i++
		case '<':
			e.ForceSrc = true
			i++
		default:
			break sigilLoop
		}
	}
	if e.ForceDst && e.ForceSrc {
		return e, fmt.Errorf("both force-dst and force-src sigils present")
	}

	rest := strings.TrimSpace(line[i:])
	// The path runs up to whichever comes first: a '=' (switching the limit
	// family to SHARED) or a run of whitespace introducing the limit value
	// directly (TOTAL family, no '=').
	splitAt := len(rest)
	shared := false
	for idx, ch := range rest {
		if ch == '=' {
			splitAt = idx
			shared = true
			break
		}
		if ch == ' ' || ch == '\t' {
			splitAt = idx
			break
		}
	}
	e.Path = strings.TrimSpace(rest[:splitAt])
	limitStr := strings.TrimSpace(rest[splitAt:])
	if strings.HasPrefix(limitStr, "=") {
		shared = true
		limitStr = strings.TrimSpace(limitStr[1:])
	}
	if e.Path == "" {
		return e, fmt.Errorf("missing path")
	}

	if limitStr == "" {
		e.LimitMode = folder.LimitNone
		return e, nil
	}

	neg := false
	if strings.HasPrefix(limitStr, "-") {
		neg = true
		limitStr = limitStr[1:]
	}

	if limitStr == "*" {
		e.LimitMode = folder.LimitNone
		return e, nil
	}

	pct := strings.HasSuffix(limitStr, "%")
	numStr := limitStr
	if pct {
		numStr = strings.TrimSuffix(numStr, "%")
	}

	var value uint64
	var err error
	if pct {
		ratio, perr := strconv.ParseFloat(numStr, 64)
		if perr != nil {
			return e, fmt.Errorf("bad percentage %q: %w", limitStr, perr)
		}
		value = uint64((ratio / 100) * (1 << 32)) // folder.LimitMode's pctScale fixed-point encoding
	} else {
		value, err = ParseSize(numStr)
		if err != nil {
			return e, fmt.Errorf("bad size %q: %w", limitStr, err)
		}
	}
	e.LimitData = value
	e.LimitMode = selectLimitMode(shared, neg, pct)
	return e, nil
}

// selectLimitMode maps the grammar's {shared, neg, pct} flags onto §4.B's
// eight-way LimitMode enum.
func selectLimitMode(shared, neg, pct bool) folder.LimitMode {
	switch {
	case !shared && !neg && !pct:
		return folder.LimitTotalPosConst
	case !shared && !neg && pct:
		return folder.LimitTotalPosPct
	case !shared && neg && !pct:
		return folder.LimitTotalNegConst
	case !shared && neg && pct:
		return folder.LimitTotalNegPct
	case shared && !neg && !pct:
		return folder.LimitSharedPosConst
	case shared && !neg && pct:
		return folder.LimitSharedPosPct
	case shared && neg && !pct:
		return folder.LimitSharedNegConst
	default:
		return folder.LimitSharedNegPct
	}
}

// ParseSize parses a byte count with an optional SI (k/M/G/T/P/E, base 1000)
// or binary (Ki/Mi/Gi/Ti/Pi/Ei, base 1024) unit suffix.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	multiplier := uint64(1)
	numPart := s
	units := []struct {
		suffix string
		mul    uint64
	}{
		{"Ei", 1 << 60}, {"Pi", 1 << 50}, {"Ti", 1 << 40}, {"Gi", 1 << 30}, {"Mi", 1 << 20}, {"Ki", 1 << 10},
		{"E", 1e18}, {"P", 1e15}, {"T", 1e12}, {"G", 1e9}, {"M", 1e6}, {"k", 1e3}, {"K", 1e3},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			numPart = strings.TrimSuffix(s, u.suffix)
			multiplier = u.mul
			break
		}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
	if err != nil {
		return 0, err
	}
	return uint64(value * float64(multiplier)), nil
}

// LoadDiskConfig opens and parses the mfshdd.cfg at path.
func LoadDiskConfig(path string) ([]DiskEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseDiskConfig(f)
}
