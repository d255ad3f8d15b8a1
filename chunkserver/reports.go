package chunkserver

import (
	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/stats"
)

// ReportDamagedCount, ReportLostCount, etc. implement the "_count(limit)"
// half of §6's two-phase report query: how many entries the matching
// ReportData call would return. limit=0 defers to the queue's own
// configured batch size.
func (s *Store) ReportDamagedCount(limit int) int    { return s.Reports.Damaged.Count(limit) }
func (s *Store) ReportLostCount(limit int) int       { return s.Reports.Lost.Count(limit) }
func (s *Store) ReportNonexistentCount(limit int) int { return s.Reports.Nonexistent.Count(limit) }
func (s *Store) ReportNewCount(limit int) int        { return s.Reports.New.Count(limit) }
func (s *Store) ReportChangedCount(limit int) int    { return s.Reports.Changed.Count(limit) }

// ReportDamagedData, ReportLostData, etc. implement the "_data(buf,limit)"
// drain half, removing and returning up to limit queued entries, oldest
// first.
func (s *Store) ReportDamagedData(limit int) []chunkid.ID    { return s.Reports.Damaged.Drain(limit) }
func (s *Store) ReportLostData(limit int) []chunkid.ID        { return s.Reports.Lost.Drain(limit) }
func (s *Store) ReportNonexistentData(limit int) []chunkid.ID { return s.Reports.Nonexistent.Drain(limit) }
func (s *Store) ReportNewData(limit int) []stats.ChunkVersion     { return s.Reports.New.Drain(limit) }
func (s *Store) ReportChangedData(limit int) []stats.ChunkVersion { return s.Reports.Changed.Drain(limit) }
