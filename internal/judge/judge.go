// Package judge labels ordered pairs of claims as SUPPORTED, CONTRADICTED, or
// NEUTRAL. Cheap deterministic rules run first (key mismatch, exact object
// match, embedding or string similarity); only genuinely ambiguous pairs reach
// the LLM. Verdicts persist in a content-addressed cache so repeat
// comparisons cost nothing.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agriwiki/agrifuse/internal/cache"
	"github.com/agriwiki/agrifuse/internal/claim"
	"github.com/agriwiki/agrifuse/internal/guard"
	"github.com/agriwiki/agrifuse/internal/llm"
)

// Relation is the verdict on a claim pair.
type Relation string

const (
	Supported    Relation = "SUPPORTED"
	Contradicted Relation = "CONTRADICTED"
	Neutral      Relation = "NEUTRAL"
)

// Judgment is the outcome of comparing two claims.
type Judgment struct {
	Relation   Relation `json:"relation"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	FromCache  bool     `json:"-"`
}

// Contradiction describes one CONTRADICTED pair inside a group.
type Contradiction struct {
	Claim1     string  `json:"claim1"`
	Claim2     string  `json:"claim2"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// GroupReport summarizes pairwise judgments across a claim group.
type GroupReport struct {
	HasContradictions bool
	Pairs             [][2]int
	Details           []Contradiction
	Relations         map[[2]int]Relation
}

const systemPrompt = `Bạn là Thẩm phán Logic (NLI Judge) chuyên về dữ liệu nông nghiệp Việt Nam.
Nhiệm vụ: So sánh hai mệnh đề để phát hiện mâu thuẫn logic.

Quy tắc:
- SUPPORTED: Hai mệnh đề có ý nghĩa tương đương hoặc bổ sung cho nhau
- CONTRADICTED: Hai mệnh đề mâu thuẫn nhau về cùng một sự kiện/thuộc tính
- NEUTRAL: Hai mệnh đề không liên quan hoặc về chủ đề khác nhau

Ví dụ:
- "Giải nhất" vs "Giải khuyến khích" → CONTRADICTED (cùng cuộc thi, khác giải)
- "8.5 tấn/ha" vs "8.6 tấn/ha" → SUPPORTED (số liệu xấp xỉ)
- "Lúa ST25" vs "Lúa ST24" → NEUTRAL (khác giống lúa)

Trả về JSON với format:
{
  "relation": "SUPPORTED" | "CONTRADICTED" | "NEUTRAL",
  "confidence": 0.0-1.0,
  "reasoning": "Giải thích ngắn gọn"
}`

// Thresholds of the decision ladder.
const (
	embeddingSupportThreshold = 0.95
	stringSupportThreshold    = 0.9
	// DefaultClusterThreshold is the semantic-clustering cutoff used by the
	// resolver for non-numeric claim groups.
	DefaultClusterThreshold = 0.85
)

// contradictionPairs is the lexical fallback applied when the LLM response
// cannot be parsed.
var contradictionPairs = [][2]string{
	{"giải nhất", "giải khuyến khích"},
	{"giải nhất", "giải nhì"},
	{"giải nhất", "giải ba"},
	{"có", "không có"},
	{"đúng", "sai"},
}

// Judge compares claim pairs. Client, Embedder, Cache, Limiter, and Breaker
// are all optional; each nil dependency just removes a rung from the ladder.
type Judge struct {
	Client   llm.Client
	Embedder llm.Embedder
	Cache    *cache.JudgeCache
	Model    string
	Limiter  *guard.RateLimiter
	Breaker  *guard.CircuitBreaker
}

// Judge classifies the ordered pair (a, b). Call sites iterating a group pass
// indices (i, j) with i < j so cache keys stay consistent.
func (j *Judge) Judge(ctx context.Context, a, b claim.Claim) Judgment {
	key := cache.PairKey(a.Subject, a.Predicate, a.Object, b.Subject, b.Predicate, b.Object)
	if j.Cache != nil {
		if raw, ok := j.Cache.Get(key); ok {
			var cached Judgment
			if err := json.Unmarshal(raw, &cached); err == nil && validRelation(cached.Relation) {
				cached.FromCache = true
				return cached
			}
			// corrupt entry reads as a miss
		}
	}

	// Different facts are trivially unrelated; not worth a cache entry.
	if a.SubjectKey() != b.SubjectKey() || a.PredicateKey() != b.PredicateKey() {
		return Judgment{Relation: Neutral, Confidence: 1.0, Reasoning: "Khác subject hoặc predicate"}
	}

	obj1 := strings.TrimSpace(a.Object)
	obj2 := strings.TrimSpace(b.Object)

	if obj1 != "" && obj2 != "" && strings.EqualFold(obj1, obj2) {
		return j.store(key, Judgment{Relation: Supported, Confidence: 1.0, Reasoning: "Giá trị giống nhau hoàn toàn"})
	}

	if obj1 != "" && obj2 != "" {
		if sim, ok := j.embeddingSimilarity(ctx, obj1, obj2); ok {
			if sim > embeddingSupportThreshold {
				return j.store(key, Judgment{
					Relation:   Supported,
					Confidence: sim,
					Reasoning:  fmt.Sprintf("Giá trị tương đồng cao (similarity: %.2f)", sim),
				})
			}
		} else if sim := Ratio(obj1, obj2); sim > stringSupportThreshold {
			return j.store(key, Judgment{
				Relation:   Supported,
				Confidence: sim,
				Reasoning:  fmt.Sprintf("Giá trị tương đồng (similarity: %.2f)", sim),
			})
		}
	}

	return j.store(key, j.judgeLLM(ctx, a, b, obj1, obj2))
}

// embeddingSimilarity returns (similarity, true) when both objects embed
// successfully. Any failure reports unavailable so the caller falls back.
func (j *Judge) embeddingSimilarity(ctx context.Context, obj1, obj2 string) (float64, bool) {
	if j.Embedder == nil {
		return 0, false
	}
	e1, err := j.Embedder.Embed(ctx, obj1)
	if err != nil || len(e1) == 0 {
		return 0, false
	}
	e2, err := j.Embedder.Embed(ctx, obj2)
	if err != nil || len(e2) == 0 {
		return 0, false
	}
	return CosineSimilarity(e1, e2), true
}

// judgeLLM asks the model for a verdict, parsing the first JSON object in the
// reply. Any failure along the way degrades to the lexical fallback; this is
// where one bad pair is absorbed instead of poisoning the batch.
func (j *Judge) judgeLLM(ctx context.Context, a, b claim.Claim, obj1, obj2 string) Judgment {
	if j.Client == nil || strings.TrimSpace(j.Model) == "" {
		return lexicalFallback(obj1, obj2, "không có LLM")
	}
	if j.Breaker != nil && !j.Breaker.CanMakeRequest() {
		return lexicalFallback(obj1, obj2, "circuit breaker đang mở")
	}
	if j.Limiter != nil {
		j.Limiter.Wait()
	}
	if j.Breaker != nil {
		j.Breaker.RecordRequest()
	}

	user := fmt.Sprintf("Mệnh đề 1: %s\nMệnh đề 2: %s\n\nHãy phân tích và trả về JSON theo format đã quy định.", a.String(), b.String())
	resp, err := j.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		N:           1,
	})
	if err != nil {
		if j.Breaker != nil {
			j.Breaker.RecordFailure(llm.IsRateLimited(err))
		}
		return lexicalFallback(obj1, obj2, "lỗi khi gọi LLM: "+err.Error())
	}
	if j.Breaker != nil {
		j.Breaker.RecordSuccess()
	}
	if len(resp.Choices) == 0 {
		return lexicalFallback(obj1, obj2, "LLM không trả về nội dung")
	}

	content := resp.Choices[0].Message.Content
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return lexicalFallback(obj1, obj2, "không tìm thấy JSON trong phản hồi LLM")
	}
	var parsed Judgment
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil || !validRelation(parsed.Relation) {
		return lexicalFallback(obj1, obj2, "không thể parse kết quả từ LLM")
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		parsed.Confidence = 0.5
	}
	return parsed
}

func (j *Judge) store(key string, verdict Judgment) Judgment {
	if j.Cache != nil {
		if raw, err := json.Marshal(verdict); err == nil {
			j.Cache.Save(key, raw)
		}
	}
	return verdict
}

func validRelation(r Relation) bool {
	return r == Supported || r == Contradicted || r == Neutral
}

// lexicalFallback scans both objects against a small map of known
// contradictory phrasings and yields a best-effort CONTRADICTED, else a
// low-confidence NEUTRAL.
func lexicalFallback(obj1, obj2, reason string) Judgment {
	l1 := strings.ToLower(obj1)
	l2 := strings.ToLower(obj2)
	if l1 != "" && l2 != "" {
		for _, kw := range contradictionPairs {
			if (strings.Contains(l1, kw[0]) && strings.Contains(l2, kw[1])) ||
				(strings.Contains(l1, kw[1]) && strings.Contains(l2, kw[0])) {
				return Judgment{
					Relation:   Contradicted,
					Confidence: 0.7,
					Reasoning:  fmt.Sprintf("Phát hiện từ khóa mâu thuẫn: %s vs %s", kw[0], kw[1]),
				}
			}
		}
	}
	return Judgment{Relation: Neutral, Confidence: 0.3, Reasoning: reason}
}

// DetectContradictions judges all C(n,2) pairs of a group and reports every
// CONTRADICTED pair.
func (j *Judge) DetectContradictions(ctx context.Context, claims []claim.Claim) GroupReport {
	report := GroupReport{Relations: map[[2]int]Relation{}}
	if len(claims) < 2 {
		return report
	}
	for i := 0; i < len(claims); i++ {
		for k := i + 1; k < len(claims); k++ {
			verdict := j.Judge(ctx, claims[i], claims[k])
			report.Relations[[2]int{i, k}] = verdict.Relation
			if verdict.Relation == Contradicted {
				report.Pairs = append(report.Pairs, [2]int{i, k})
				report.Details = append(report.Details, Contradiction{
					Claim1:     claims[i].String(),
					Claim2:     claims[k].String(),
					Reasoning:  verdict.Reasoning,
					Confidence: verdict.Confidence,
				})
			}
		}
	}
	report.HasContradictions = len(report.Pairs) > 0
	return report
}

// ClusterBySimilarity groups claims whose composite "subject - predicate:
// object" values are semantically close. With no embedder the comparison
// degrades to the deterministic string ratio over objects. Greedy first-fit:
// each claim joins the first cluster whose representative is close enough.
func (j *Judge) ClusterBySimilarity(ctx context.Context, claims []claim.Claim, threshold float64) [][]claim.Claim {
	if len(claims) == 0 {
		return nil
	}
	composite := func(c claim.Claim) string {
		return fmt.Sprintf("%s - %s: %s", c.Subject, c.Predicate, c.Object)
	}
	var clusters [][]claim.Claim
next:
	for _, c := range claims {
		cv := composite(c)
		for i, cluster := range clusters {
			rep := composite(cluster[0])
			if strings.EqualFold(cv, rep) {
				clusters[i] = append(clusters[i], c)
				continue next
			}
			var sim float64
			if s, ok := j.embeddingSimilarity(ctx, cv, rep); ok {
				sim = s
			} else {
				sim = Ratio(c.Object, cluster[0].Object)
			}
			if sim >= threshold {
				clusters[i] = append(clusters[i], c)
				continue next
			}
		}
		clusters = append(clusters, []claim.Claim{c})
	}
	return clusters
}
