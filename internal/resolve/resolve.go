// Package resolve fuses claims from many sources into one gold claim per
// (subject, predicate) fact via weighted voting: group, cluster compatible
// values, score each cluster by source trust and recency, elect the winner,
// and flag contradictions inside it.
package resolve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agriwiki/agrifuse/internal/claim"
	"github.com/agriwiki/agrifuse/internal/judge"
	"github.com/agriwiki/agrifuse/internal/trust"
)

const (
	// CurrentYearBoost multiplies the trust weight of claims whose context
	// mentions the current year.
	CurrentYearBoost = 1.2
	olderYearFactor  = 1.0

	// numericTolerance is the relative distance to the running cluster mean
	// within which a numeric value joins the cluster.
	numericTolerance = 0.05
)

// Resolved is the fusion result for one claim group.
type Resolved struct {
	Gold              claim.Claim           `json:"goldClaim"`
	SupportURLs       []string              `json:"supportUrls"`
	TotalScore        float64               `json:"totalScore"`
	ClusterValues     []string              `json:"clusterValues"`
	HasContradictions bool                  `json:"hasContradictions"`
	Contradictions    []judge.Contradiction `json:"contradictionDetails,omitempty"`
}

// Resolver performs weighted voting over claim bags. Judge is optional: with
// no judge, contradiction flagging degrades to "more than one distinct value"
// and non-numeric clustering to case-folded exact match.
type Resolver struct {
	Trust *trust.Scorer
	Judge *judge.Judge

	// Now is injectable for recency tests; nil means time.Now.
	Now func() time.Time
}

// Resolve groups the claims by (subject, predicate) key and elects a gold
// claim per group. Groups are processed in first-seen order, so output order
// is deterministic given input order. Resolve never fails on content.
func (r *Resolver) Resolve(ctx context.Context, claims []claim.Claim) []Resolved {
	groups := make(map[claim.GroupKey][]claim.Claim)
	var order []claim.GroupKey
	for _, c := range claims {
		k := c.GroupKey()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}

	out := make([]Resolved, 0, len(order))
	for _, k := range order {
		if res, ok := r.resolveGroup(ctx, groups[k]); ok {
			out = append(out, res)
		}
	}
	return out
}

type scoredCluster struct {
	score  float64
	claims []claim.Claim
}

func (r *Resolver) resolveGroup(ctx context.Context, group []claim.Claim) (Resolved, bool) {
	if len(group) == 0 {
		return Resolved{}, false
	}

	type numericItem struct {
		c claim.Claim
		v float64
	}
	var numeric []numericItem
	var textual []claim.Claim
	for _, c := range group {
		if v, ok := parseNumeric(c.Object); ok {
			numeric = append(numeric, numericItem{c: c, v: v})
		} else {
			textual = append(textual, c)
		}
	}

	var clusters []scoredCluster

	if len(numeric) > 0 {
		sort.SliceStable(numeric, func(i, j int) bool { return numeric[i].v < numeric[j].v })
		cur := []numericItem{numeric[0]}
		mean := numeric[0].v
		flush := func() {
			cs := make([]claim.Claim, len(cur))
			for i, it := range cur {
				cs[i] = it.c
			}
			clusters = append(clusters, scoredCluster{score: r.scoreCluster(cs), claims: cs})
		}
		for _, it := range numeric[1:] {
			var rel float64
			if mean == 0 {
				rel = math.Abs(it.v - mean)
			} else {
				rel = math.Abs(it.v-mean) / math.Abs(mean)
			}
			if rel <= numericTolerance {
				cur = append(cur, it)
				var sum float64
				for _, x := range cur {
					sum += x.v
				}
				mean = sum / float64(len(cur))
			} else {
				flush()
				cur = []numericItem{it}
				mean = it.v
			}
		}
		flush()
	}

	if len(textual) > 0 {
		for _, cluster := range r.clusterText(ctx, textual) {
			clusters = append(clusters, scoredCluster{score: r.scoreCluster(cluster), claims: cluster})
		}
	}

	if len(clusters) == 0 {
		return Resolved{}, false
	}

	// Highest score wins; stable sort keeps first-encountered on ties.
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].score > clusters[j].score })
	best := clusters[0]

	gold := r.electGold(best.claims)
	res := Resolved{
		Gold:       gold,
		TotalScore: best.score,
	}
	seen := map[string]struct{}{}
	for _, c := range best.claims {
		if c.SourceURL != "" {
			if _, ok := seen[c.SourceURL]; !ok {
				seen[c.SourceURL] = struct{}{}
				res.SupportURLs = append(res.SupportURLs, c.SourceURL)
			}
		}
		if c.Object != "" {
			res.ClusterValues = append(res.ClusterValues, c.Object)
		}
	}

	if len(best.claims) > 1 {
		res.HasContradictions, res.Contradictions = r.flagContradictions(ctx, best.claims)
	}
	return res, true
}

// clusterText partitions non-numeric claims. With a judge that can embed,
// clustering is semantic at the 0.85 threshold; otherwise values are grouped
// by case-folded exact match.
func (r *Resolver) clusterText(ctx context.Context, claims []claim.Claim) [][]claim.Claim {
	if r.Judge != nil && r.Judge.Embedder != nil {
		return r.Judge.ClusterBySimilarity(ctx, claims, judge.DefaultClusterThreshold)
	}
	var clusters [][]claim.Claim
next:
	for _, c := range claims {
		v := strings.ToLower(strings.TrimSpace(c.Object))
		for i, cluster := range clusters {
			if v == strings.ToLower(strings.TrimSpace(cluster[0].Object)) {
				clusters[i] = append(clusters[i], c)
				continue next
			}
		}
		clusters = append(clusters, []claim.Claim{c})
	}
	return clusters
}

// scoreCluster sums trust(sourceURL) * timeWeight over members.
func (r *Resolver) scoreCluster(cs []claim.Claim) float64 {
	var score float64
	for _, c := range cs {
		score += r.trustScore(c.SourceURL) * r.timeWeight(c)
	}
	return score
}

func (r *Resolver) trustScore(url string) float64 {
	if r.Trust == nil {
		return trust.DefaultScore
	}
	return r.Trust.Score(url)
}

// timeWeight boosts claims whose context mentions the current year.
func (r *Resolver) timeWeight(c claim.Claim) float64 {
	year, ok := yearFromContext(c.Context)
	if !ok {
		return olderYearFactor
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if year == now().Year() {
		return CurrentYearBoost
	}
	return olderYearFactor
}

// electGold picks the representative claim of the winning cluster: closest to
// the mean for numeric clusters, highest confidence + 0.1*trust otherwise.
func (r *Resolver) electGold(cs []claim.Claim) claim.Claim {
	type pair struct {
		c claim.Claim
		v float64
	}
	var nums []pair
	for _, c := range cs {
		if v, ok := parseNumeric(c.Object); ok {
			nums = append(nums, pair{c: c, v: v})
		}
	}
	if len(nums) > 0 {
		var sum float64
		for _, p := range nums {
			sum += p.v
		}
		mean := sum / float64(len(nums))
		best := nums[0]
		for _, p := range nums[1:] {
			if math.Abs(p.v-mean) < math.Abs(best.v-mean) {
				best = p
			}
		}
		return best.c
	}

	best := cs[0]
	bestScore := best.Confidence + 0.1*r.trustScore(best.SourceURL)
	for _, c := range cs[1:] {
		if s := c.Confidence + 0.1*r.trustScore(c.SourceURL); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

// flagContradictions runs the pairwise judge over the winning cluster. With
// no judge the fallback is distinct-value counting.
func (r *Resolver) flagContradictions(ctx context.Context, cs []claim.Claim) (bool, []judge.Contradiction) {
	if r.Judge != nil {
		report := r.Judge.DetectContradictions(ctx, cs)
		return report.HasContradictions, report.Details
	}

	distinct := map[string]struct{}{}
	var values []string
	for _, c := range cs {
		if c.Object == "" {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(c.Object))
		if _, ok := distinct[v]; !ok {
			distinct[v] = struct{}{}
			values = append(values, v)
		}
	}
	if len(distinct) <= 1 {
		return false, nil
	}
	if len(values) > 3 {
		values = values[:3]
	}
	log.Debug().Int("values", len(distinct)).Msg("contradiction fallback without judge")
	return true, []judge.Contradiction{{
		Reasoning: fmt.Sprintf("Phát hiện %d giá trị khác nhau: %s", len(distinct), strings.Join(values, ", ")),
	}}
}
