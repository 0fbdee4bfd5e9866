package frontier

import (
	"math"
	"net/url"
	"strings"
)

// Scoring constants for the priority function: a base score, bonuses
// for https and whitelisted TLDs/domains, and linear penalties once a
// structural dimension crosses its threshold.
const (
	baseScore            = 1000
	httpsBonus           = 50
	tldWhitelistBonus    = 100
	domainWhitelistBonus = 200

	domainLengthThreshold   = 30
	domainLengthPenaltyUnit = 2

	urlLengthThreshold   = 100
	urlLengthPenaltyUnit = 1

	queryParamThreshold   = 3
	queryParamPenaltyUnit = 20

	pathDepthThreshold   = 5
	pathDepthPenaltyUnit = 15
)

// DefaultTLDWhitelist is the bonus-eligible TLD set used when no
// explicit whitelist is configured.
var DefaultTLDWhitelist = []string{"com", "org", "net", "edu", "gov"}

// Scorer computes the priority score a URL is pushed into the frontier
// with. It is an interface so tests can substitute deterministic
// scoring without going through URL-structure heuristics.
type Scorer interface {
	Score(rawURL string) int32
}

// WeightedScorer is the production Scorer: base score plus structural
// bonuses and penalties.
type WeightedScorer struct {
	tldWhitelist    map[string]struct{}
	domainWhitelist map[string]struct{}
}

// NewScorer builds a WeightedScorer from whitelists of bonus-eligible
// TLDs and registrable domains.
func NewScorer(tldWhitelist, domainWhitelist []string) WeightedScorer {
	s := WeightedScorer{
		tldWhitelist:    make(map[string]struct{}, len(tldWhitelist)),
		domainWhitelist: make(map[string]struct{}, len(domainWhitelist)),
	}
	for _, t := range tldWhitelist {
		s.tldWhitelist[strings.ToLower(t)] = struct{}{}
	}
	for _, d := range domainWhitelist {
		s.domainWhitelist[strings.ToLower(d)] = struct{}{}
	}
	return s
}

// DefaultScorer returns a WeightedScorer using DefaultTLDWhitelist and
// no domain whitelist.
func DefaultScorer() WeightedScorer {
	return NewScorer(DefaultTLDWhitelist, nil)
}

// Score computes the priority of rawURL. Scores are clamped to
// [0, math.MaxInt32] so they fit the signed int32 field of QueuedURL.
func (s WeightedScorer) Score(rawURL string) int32 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}

	score := int64(baseScore)

	if strings.EqualFold(u.Scheme, "https") {
		score += httpsBonus
	}

	host := strings.ToLower(u.Hostname())
	if _, ok := s.tldWhitelist[tldOf(host)]; ok {
		score += tldWhitelistBonus
	}
	if _, ok := s.domainWhitelist[registrableDomain(host)]; ok {
		score += domainWhitelistBonus
	}

	score -= penalty(len(host), domainLengthThreshold, domainLengthPenaltyUnit)
	score -= penalty(len(rawURL), urlLengthThreshold, urlLengthPenaltyUnit)
	score -= penalty(len(u.Query()), queryParamThreshold, queryParamPenaltyUnit)
	score -= penalty(pathDepth(u.Path), pathDepthThreshold, pathDepthPenaltyUnit)

	if score < 0 {
		score = 0
	}
	if score > math.MaxInt32 {
		score = math.MaxInt32
	}
	return int32(score)
}

// penalty returns the linear penalty once n exceeds threshold, zero
// otherwise — never negative, so callers can subtract without risking
// underflow beyond the final clamp.
func penalty(n, threshold, unitPenalty int) int64 {
	if n <= threshold {
		return 0
	}
	return int64(n-threshold) * int64(unitPenalty)
}

func tldOf(host string) string {
	i := strings.LastIndexByte(host, '.')
	if i < 0 {
		return host
	}
	return host[i+1:]
}

// registrableDomain approximates eTLD+1 by joining the last two labels;
// sufficient for the whitelist-bonus use case. Exact public-suffix
// handling belongs to a link-extraction layer, not this scorer.
func registrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

func pathDepth(p string) int {
	p = strings.Trim(p, "/")
	if p == "" {
		return 0
	}
	return len(strings.Split(p, "/"))
}
