package judge

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agriwiki/agrifuse/internal/cache"
	"github.com/agriwiki/agrifuse/internal/claim"
)

type fakeChat struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: reply}}},
	}, nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.vectors == nil {
		return nil, nil
	}
	return f.vectors[text], nil
}

func mustClaim(t *testing.T, subject, predicate, object string) claim.Claim {
	t.Helper()
	c, err := claim.New(subject, predicate, object, "", 0.8)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestJudge_DifferentKeysAreNeutral(t *testing.T) {
	j := &Judge{}
	a := mustClaim(t, "Lúa ST25", "Năng suất", "8.5 tấn/ha")
	b := mustClaim(t, "Lúa ST24", "Năng suất", "8.5 tấn/ha")
	got := j.Judge(context.Background(), a, b)
	if got.Relation != Neutral || got.Confidence != 1.0 {
		t.Fatalf("got %+v, want NEUTRAL confidence 1.0", got)
	}
}

func TestJudge_IdenticalObjectsSupported(t *testing.T) {
	j := &Judge{}
	a := mustClaim(t, "Lúa ST25", "Năng suất", "8.5 tấn/ha")
	b := mustClaim(t, "lúa st25", "năng suất", "8.5 TẤN/HA")
	got := j.Judge(context.Background(), a, b)
	if got.Relation != Supported || got.Confidence != 1.0 {
		t.Fatalf("got %+v, want SUPPORTED confidence 1.0", got)
	}
}

func TestJudge_SelfComparisonSupported(t *testing.T) {
	j := &Judge{}
	a := mustClaim(t, "Lúa ST25", "Năng suất", "8.5 tấn/ha")
	got := j.Judge(context.Background(), a, a)
	if got.Relation != Supported || got.Confidence != 1.0 {
		t.Fatalf("judge(a,a) = %+v, want SUPPORTED 1.0", got)
	}
}

func TestJudge_EmbeddingSimilarityShortcut(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"8.5 tấn/ha": {1, 0, 0.01},
		"8.6 tấn/ha": {1, 0, 0.02},
	}}
	j := &Judge{Embedder: emb}
	a := mustClaim(t, "Lúa ST25", "Năng suất", "8.5 tấn/ha")
	b := mustClaim(t, "Lúa ST25", "Năng suất", "8.6 tấn/ha")
	got := j.Judge(context.Background(), a, b)
	if got.Relation != Supported {
		t.Fatalf("near-identical vectors must be SUPPORTED, got %+v", got)
	}
	if got.Confidence <= 0.95 {
		t.Fatalf("confidence carries the similarity, got %v", got.Confidence)
	}
}

func TestJudge_StringSimilarityFallbackWithoutEmbedder(t *testing.T) {
	j := &Judge{}
	a := mustClaim(t, "Lúa ST25", "Thời gian sinh trưởng", "95-100 ngày")
	b := mustClaim(t, "Lúa ST25", "Thời gian sinh trưởng", "95-100 ngày.")
	got := j.Judge(context.Background(), a, b)
	if got.Relation != Supported {
		t.Fatalf("near-equal strings must be SUPPORTED, got %+v", got)
	}
}

func TestJudge_LLMVerdictParsed(t *testing.T) {
	chat := &fakeChat{replies: []string{
		"Phân tích:\n{\"relation\":\"CONTRADICTED\",\"confidence\":0.9,\"reasoning\":\"khác giải\"}\nxong",
	}}
	j := &Judge{Client: chat, Model: "test-model"}
	a := mustClaim(t, "Gạo ST25", "Giải thưởng", "Giải nhất Gạo Ngon Thế Giới 2019")
	b := mustClaim(t, "Gạo ST25", "Giải thưởng", "Top 10 Gạo Ngon")
	got := j.Judge(context.Background(), a, b)
	if got.Relation != Contradicted || got.Confidence != 0.9 {
		t.Fatalf("got %+v, want CONTRADICTED 0.9", got)
	}
}

func TestJudge_LexicalFallbackOnGarbageLLMOutput(t *testing.T) {
	chat := &fakeChat{replies: []string{"tôi không chắc lắm"}}
	j := &Judge{Client: chat, Model: "test-model"}
	a := mustClaim(t, "Gạo ST25", "Giải thưởng", "Giải nhất Gạo Ngon Thế Giới")
	b := mustClaim(t, "Gạo ST25", "Giải thưởng", "Giải khuyến khích Gạo Ngon Thế Giới")
	got := j.Judge(context.Background(), a, b)
	if got.Relation != Contradicted || got.Confidence != 0.7 {
		t.Fatalf("lexical map must flag the pair, got %+v", got)
	}
}

func TestJudge_NeutralLowConfidenceWhenNothingMatches(t *testing.T) {
	chat := &fakeChat{errs: []error{errors.New("connection refused")}}
	j := &Judge{Client: chat, Model: "test-model"}
	a := mustClaim(t, "Gạo ST25", "Xuất khẩu", "Châu Âu")
	b := mustClaim(t, "Gạo ST25", "Xuất khẩu", "Thị trường Mỹ")
	got := j.Judge(context.Background(), a, b)
	if got.Relation != Neutral || got.Confidence != 0.3 {
		t.Fatalf("got %+v, want NEUTRAL 0.3", got)
	}
}

func TestJudge_CacheIdempotence(t *testing.T) {
	chat := &fakeChat{replies: []string{
		`{"relation":"CONTRADICTED","confidence":0.85,"reasoning":"khác giá trị"}`,
	}}
	j := &Judge{
		Client: chat,
		Model:  "test-model",
		Cache:  &cache.JudgeCache{Dir: t.TempDir()},
	}
	a := mustClaim(t, "Gạo ST25", "Giải thưởng", "Giải nhất 2019")
	b := mustClaim(t, "Gạo ST25", "Giải thưởng", "Hạng nhì 2019")

	first := j.Judge(context.Background(), a, b)
	if first.FromCache {
		t.Fatalf("first verdict must not come from cache")
	}
	second := j.Judge(context.Background(), a, b)
	if !second.FromCache {
		t.Fatalf("second verdict must come from cache")
	}
	if second.Relation != first.Relation || second.Confidence != first.Confidence {
		t.Fatalf("cache changed the verdict: %+v vs %+v", first, second)
	}
	if chat.calls != 1 {
		t.Fatalf("LLM called %d times, want 1", chat.calls)
	}
}

func TestDetectContradictions(t *testing.T) {
	chat := &fakeChat{replies: []string{
		`{"relation":"CONTRADICTED","confidence":0.9,"reasoning":"khác giải"}`,
	}}
	j := &Judge{Client: chat, Model: "test-model"}
	claims := []claim.Claim{
		mustClaim(t, "Gạo ST25", "Giải thưởng", "Giải nhất Gạo Ngon Thế Giới"),
		mustClaim(t, "Gạo ST25", "Giải thưởng", "Top 3 Gạo Ngon Thế Giới"),
	}
	report := j.DetectContradictions(context.Background(), claims)
	if !report.HasContradictions || len(report.Details) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Relations[[2]int{0, 1}] != Contradicted {
		t.Fatalf("relations map missing pair verdict")
	}
}

func TestDetectContradictions_SmallGroups(t *testing.T) {
	j := &Judge{}
	if r := j.DetectContradictions(context.Background(), nil); r.HasContradictions {
		t.Fatalf("empty group cannot contradict")
	}
}

func TestClusterBySimilarity_ExactMatchJoins(t *testing.T) {
	j := &Judge{}
	claims := []claim.Claim{
		mustClaim(t, "Lúa ST25", "Năng suất", "8.5 tấn/ha"),
		mustClaim(t, "Lúa ST25", "Năng suất", "8.5 TẤN/HA"),
		mustClaim(t, "Lúa ST25", "Năng suất", "một giá trị hoàn toàn khác biệt"),
	}
	clusters := j.ClusterBySimilarity(context.Background(), claims, DefaultClusterThreshold)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if len(clusters[0]) != 2 {
		t.Fatalf("case-folded equal values must share a cluster")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors: %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors: %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Fatalf("mismatched lengths: %v", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Fatalf("empty vectors: %v", got)
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("abc", "abc"); got != 1 {
		t.Fatalf("equal strings: %v", got)
	}
	if got := Ratio("", ""); got != 1 {
		t.Fatalf("both empty: %v", got)
	}
	if got := Ratio("abc", "xyz"); got != 0 {
		t.Fatalf("disjoint strings: %v", got)
	}
	if got := Ratio("8.5 tấn/ha", "8.5 tấn/ha "); got < 0.99 {
		t.Fatalf("trim before compare: %v", got)
	}
	mid := Ratio("giải nhất", "giải nhì")
	if mid <= 0 || mid >= 1 {
		t.Fatalf("partial overlap must land strictly inside (0,1): %v", mid)
	}
}
