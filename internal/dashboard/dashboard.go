package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"osintdeck/internal/constants"
	"osintdeck/internal/database"
	"osintdeck/internal/investigation"
	"osintdeck/internal/logger"
)

// Channel is the websocket channel dashboard updates are pushed on.
const Channel = constants.ChannelDashboard

const (
	trendDays      = 7
	recentActivity = 10
	mapMarkers     = 200
)

// Broadcaster is satisfied by the websocket hub.
type Broadcaster interface {
	Broadcast(channel, msgType string, data interface{})
}

type TrendPoint struct {
	Day            string `json:"day"`
	Investigations int64  `json:"investigations"`
	Threats        int64  `json:"threats"`
}

type Activity struct {
	ID          uint      `json:"id"`
	Kind        string    `json:"kind"`
	Query       string    `json:"query"`
	ThreatScore int       `json:"threat_score"`
	ThreatLevel string    `json:"threat_level"`
	IsThreat    bool      `json:"is_threat"`
	CaseID      *uint     `json:"case_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Stats struct {
	TotalInvestigations int64            `json:"total_investigations"`
	Threats             int64            `json:"threats"`
	OpenCases           int64            `json:"open_cases"`
	InProgressCases     int64            `json:"in_progress_cases"`
	ClosedCases         int64            `json:"closed_cases"`
	ByKind              map[string]int64 `json:"by_kind"`
	Trend               []TrendPoint     `json:"trend"`
	Recent              []Activity       `json:"recent"`
	GeneratedAt         time.Time        `json:"generated_at"`
}

// Marker is one IP plotted on the threat map.
type Marker struct {
	InvestigationID uint      `json:"investigation_id"`
	IP              string    `json:"ip"`
	Lat             float64   `json:"lat"`
	Lon             float64   `json:"lon"`
	City            string    `json:"city"`
	Country         string    `json:"country"`
	ThreatScore     int       `json:"threat_score"`
	Severity        string    `json:"severity"`
	CreatedAt       time.Time `json:"created_at"`
}

// Service computes the dashboard projection. It never writes.
type Service struct {
	invRepo  *database.InvestigationRepo
	caseRepo *database.CaseRepo
	hub      Broadcaster
	now      func() time.Time

	mu   sync.RWMutex
	last *Stats
}

func NewService(invRepo *database.InvestigationRepo, caseRepo *database.CaseRepo, hub Broadcaster) *Service {
	return &Service{invRepo: invRepo, caseRepo: caseRepo, hub: hub, now: time.Now}
}

// Stats returns the last computed snapshot, computing one if none exists.
func (s *Service) Stats() (*Stats, error) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last != nil {
		return last, nil
	}
	return s.Compute()
}

// Compute rebuilds the snapshot from the investigation and case tables.
func (s *Service) Compute() (*Stats, error) {
	now := s.now()
	st := &Stats{ByKind: map[string]int64{}, GeneratedAt: now.UTC()}

	all, err := s.invRepo.ListAll()
	if err != nil {
		return nil, err
	}
	st.TotalInvestigations = int64(len(all))

	trend, index := emptyTrend(now)
	for _, inv := range all {
		st.ByKind[inv.Kind]++
		threat := investigation.IsThreat(inv.Kind, inv.ResultJSON)
		if threat {
			st.Threats++
		}
		if i, ok := index[inv.CreatedAt.In(now.Location()).Format("2006-01-02")]; ok {
			trend[i].Investigations++
			if threat {
				trend[i].Threats++
			}
		}
	}
	st.Trend = trend

	for i := len(all) - 1; i >= 0 && len(st.Recent) < recentActivity; i-- {
		st.Recent = append(st.Recent, activityOf(all[i]))
	}
	if st.Recent == nil {
		st.Recent = []Activity{}
	}

	byStatus, err := s.caseRepo.CountByStatus()
	if err != nil {
		return nil, err
	}
	st.OpenCases = byStatus[constants.CaseOpen]
	st.InProgressCases = byStatus[constants.CaseInProgress]
	st.ClosedCases = byStatus[constants.CaseClosed]

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
	return st, nil
}

// Refresh recomputes and pushes the snapshot to dashboard subscribers.
func (s *Service) Refresh() {
	st, err := s.Compute()
	if err != nil {
		logger.Log.Warn().Err(err).Msg("dashboard refresh failed")
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(Channel, "dashboard_update", st)
	}
}

func emptyTrend(now time.Time) ([]TrendPoint, map[string]int) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(trendDays - 1))
	out := make([]TrendPoint, trendDays)
	index := make(map[string]int, trendDays)
	for i := range out {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		out[i].Day = day
		index[day] = i
	}
	return out, index
}

func activityOf(inv database.Investigation) Activity {
	score := investigation.EstimateThreat(inv.Kind, inv.ResultJSON)
	return Activity{
		ID:          inv.ID,
		Kind:        inv.Kind,
		Query:       inv.Query,
		ThreatScore: score,
		ThreatLevel: investigation.ThreatLevel(score),
		IsThreat:    score >= investigation.ThreatThreshold,
		CaseID:      inv.CaseID,
		CreatedAt:   inv.CreatedAt,
	}
}

type ipView struct {
	IP          string   `json:"ip"`
	City        string   `json:"city"`
	Country     string   `json:"country"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	ThreatScore int      `json:"threat_score"`
}

// ThreatMap plots recent IP investigations that carry coordinates.
// Rows with unparseable results or no location are skipped.
func (s *Service) ThreatMap() ([]Marker, error) {
	rows, err := s.invRepo.ListRecentByKind(constants.KindIP, mapMarkers)
	if err != nil {
		return nil, err
	}
	markers := make([]Marker, 0, len(rows))
	for _, inv := range rows {
		var v ipView
		if json.Unmarshal([]byte(inv.ResultJSON), &v) != nil || v.Lat == nil || v.Lon == nil {
			continue
		}
		ip := v.IP
		if ip == "" {
			ip = inv.Query
		}
		markers = append(markers, Marker{
			InvestigationID: inv.ID,
			IP:              ip,
			Lat:             *v.Lat,
			Lon:             *v.Lon,
			City:            v.City,
			Country:         v.Country,
			ThreatScore:     v.ThreatScore,
			Severity:        investigation.ThreatLevel(v.ThreatScore),
			CreatedAt:       inv.CreatedAt,
		})
	}
	return markers, nil
}
