package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Settings holds the §6 named daemon options, each defaulted per spec.
type Settings struct {
	TestSpeedMBps            float64       // HDD_TEST_SPEED; 0 disables testing
	RebalanceUtilizationPct  int           // HDD_REBALANCE_UTILIZATION
	HighSpeedRebalanceLimit  int           // HDD_HIGH_SPEED_REBALANCE_LIMIT
	ErrorToleranceCount      int           // HDD_ERROR_TOLERANCE_COUNT
	ErrorTolerancePeriod     time.Duration // HDD_ERROR_TOLERANCE_PERIOD
	LeaveSpaceDefault        uint64        // HDD_LEAVE_SPACE_DEFAULT, bytes
	KeepDuplicatesHours      int           // HDD_KEEP_DUPLICATES_HOURS
	SparsifyOnWrite          bool          // HDD_SPARSIFY_ON_WRITE
	FsyncBeforeClose         bool          // HDD_FSYNC_BEFORE_CLOSE
	RRChunkCount             int           // HDD_RR_CHUNK_COUNT
	MinTestInterval          time.Duration // HDD_MIN_TEST_INTERVAL
	FadviseMinTime           time.Duration // HDD_FADVISE_MIN_TIME
	AllowStartingWithInvalid bool          // ALLOW_STARTING_WITH_INVALID_DISKS
}

// DefaultSettings returns §6's documented defaults.
func DefaultSettings() Settings {
	return Settings{
		TestSpeedMBps:           1.0,
		RebalanceUtilizationPct: 20,
		HighSpeedRebalanceLimit: 0,
		ErrorToleranceCount:     2,
		ErrorTolerancePeriod:    600 * time.Second,
		LeaveSpaceDefault:       256 << 20,
		KeepDuplicatesHours:     168,
		SparsifyOnWrite:         true,
		FsyncBeforeClose:        false,
		RRChunkCount:            10000,
		MinTestInterval:         0,
		FadviseMinTime:          0,
		AllowStartingWithInvalid: false,
	}
}

// ParseSettings reads `KEY = VALUE` lines (blank/comment lines ignored,
// the same stripComment grammar as the disk config) layered on top of
// DefaultSettings, so an omitted key keeps its documented default.
func ParseSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return s, fmt.Errorf("config: settings line %d: missing '='", lineNo)
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if err := s.apply(key, val); err != nil {
			return s, fmt.Errorf("config: settings line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) apply(key, val string) error {
	switch strings.ToUpper(key) {
	case "HDD_TEST_SPEED":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		s.TestSpeedMBps = f
	case "HDD_REBALANCE_UTILIZATION":
		n, err := parseIntClamped(val, 0, 100)
		if err != nil {
			return err
		}
		s.RebalanceUtilizationPct = n
	case "HDD_HIGH_SPEED_REBALANCE_LIMIT":
		n, err := parseIntClamped(val, 0, 10)
		if err != nil {
			return err
		}
		s.HighSpeedRebalanceLimit = n
	case "HDD_ERROR_TOLERANCE_COUNT":
		n, err := parseIntClamped(val, 1, 10)
		if err != nil {
			return err
		}
		s.ErrorToleranceCount = n
	case "HDD_ERROR_TOLERANCE_PERIOD":
		n, err := parseIntClamped(val, 10, 86400)
		if err != nil {
			return err
		}
		s.ErrorTolerancePeriod = time.Duration(n) * time.Second
	case "HDD_LEAVE_SPACE_DEFAULT":
		n, err := ParseSize(val)
		if err != nil {
			return err
		}
		s.LeaveSpaceDefault = n
	case "HDD_KEEP_DUPLICATES_HOURS":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		s.KeepDuplicatesHours = n
	case "HDD_SPARSIFY_ON_WRITE":
		b, err := parseBool(val)
		if err != nil {
			return err
		}
		s.SparsifyOnWrite = b
	case "HDD_FSYNC_BEFORE_CLOSE":
		b, err := parseBool(val)
		if err != nil {
			return err
		}
		s.FsyncBeforeClose = b
	case "HDD_RR_CHUNK_COUNT":
		n, err := parseIntClamped(val, 1, 100000)
		if err != nil {
			return err
		}
		s.RRChunkCount = n
	case "HDD_MIN_TEST_INTERVAL":
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		s.MinTestInterval = d
	case "HDD_FADVISE_MIN_TIME":
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		s.FadviseMinTime = d
	case "ALLOW_STARTING_WITH_INVALID_DISKS":
		b, err := parseBool(val)
		if err != nil {
			return err
		}
		s.AllowStartingWithInvalid = b
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func parseIntClamped(val string, min, max int) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n, nil
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", val)
	}
}
