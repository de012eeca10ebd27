// Package extract turns Vietnamese agricultural prose into structured claims.
// Long documents are chunked on sentence boundaries; each chunk goes through
// one rate-limited LLM call whose JSON-array reply is parsed into claims.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/agriwiki/agrifuse/internal/claim"
	"github.com/agriwiki/agrifuse/internal/guard"
	"github.com/agriwiki/agrifuse/internal/llm"
)

const (
	DefaultChunkSize = 3000
	DefaultOverlap   = 200

	backoffBase = 60 * time.Second
	maxJitter   = 20 * time.Second
	// one retry per chunk, then the chunk is given up
	maxRetries = 1
)

const extractionPrompt = `Bạn là Chuyên gia Dữ liệu Nông nghiệp Việt Nam.
Nhiệm vụ: Trích xuất các khẳng định (Claims) từ văn bản về giống cây trồng/kỹ thuật canh tác.

Yêu cầu Output: trả về một JSON array các object theo schema:
{
  "subject": "Tên thực thể chính hóa (VD: Lúa ST25, Bệnh đạo ôn)",
  "predicate": "Thuộc tính (VD: Năng suất, Thời gian sinh trưởng, Khả năng chịu mặn)",
  "object": "Giá trị cụ thể bao gồm đơn vị (VD: 8.5 tấn/ha, 95-100 ngày) hoặc null nếu không có",
  "context": "Điều kiện áp dụng (VD: Vụ Đông Xuân, Vùng ven biển) hoặc null",
  "confidence": "Độ tin cậy của mô hình (float 0.0 - 1.0)"
}

- Một câu có thể chứa nhiều claim; hãy trích xuất tất cả.
- Chỉ trả về JSON hợp lệ, không kèm giải thích.
- Nếu không có claim nào, trả về []`

// Options controls chunking of long inputs.
type Options struct {
	Chunking  bool
	ChunkSize int
	Overlap   int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Overlap < 0 || o.Overlap >= o.ChunkSize {
		o.Overlap = DefaultOverlap
	}
	return o
}

// Extractor extracts claims from text via an LLM. Limiter and Breaker are
// shared with every other LLM caller in the process.
type Extractor struct {
	Client  llm.Client
	Model   string
	Limiter *guard.RateLimiter
	Breaker *guard.CircuitBreaker
	Opts    Options

	// test seams; nil means time.Sleep and rand jitter
	sleep  func(time.Duration)
	jitter func() time.Duration
}

// FromText extracts claims from a text blob. Partial output is normal: chunks
// skipped by the breaker or failing after retry simply contribute nothing.
// When the breaker forced skips, the accumulated claims are returned together
// with ErrQuotaExhausted so the caller can tell the operator.
func (e *Extractor) FromText(ctx context.Context, text string) ([]claim.Claim, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	opts := e.Opts.withDefaults()
	chunks := []string{text}
	if opts.Chunking && len(text) > opts.ChunkSize {
		chunks = chunkText(text, opts.ChunkSize, opts.Overlap)
	}

	var out []claim.Claim
	skipped := 0
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return claim.Dedupe(out), err
		}
		if e.Breaker != nil && !e.Breaker.CanMakeRequest() {
			skipped++
			continue
		}
		claims, ok := e.extractChunk(ctx, chunk)
		if !ok {
			log.Debug().Int("chunk", i).Msg("chunk yielded no claims")
			continue
		}
		out = append(out, claims...)
	}

	out = claim.Dedupe(out)
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Int("chunks", len(chunks)).
			Msg("breaker open, chunks skipped")
		return out, fmt.Errorf("bỏ qua %d/%d chunk: %w", skipped, len(chunks), llm.ErrQuotaExhausted)
	}
	return out, nil
}

// extractChunk runs one chunk through the LLM, retrying once on a 429 with
// exponential backoff. A server-provided retry hint extends the backoff but
// never shortens it.
func (e *Extractor) extractChunk(ctx context.Context, chunk string) ([]claim.Claim, bool) {
	for attempt := 0; ; attempt++ {
		if e.Limiter != nil {
			e.Limiter.Wait()
		}
		if e.Breaker != nil {
			e.Breaker.RecordRequest()
		}

		resp, err := e.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: e.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
				{Role: openai.ChatMessageRoleUser, Content: "Input Text:\n" + chunk},
			},
			Temperature: 0.2,
			N:           1,
		})
		if err == nil {
			if e.Breaker != nil {
				e.Breaker.RecordSuccess()
			}
			if len(resp.Choices) == 0 {
				return nil, false
			}
			return parseClaims(resp.Choices[0].Message.Content), true
		}

		limited := llm.IsRateLimited(err)
		if e.Breaker != nil {
			e.Breaker.RecordFailure(limited)
		}
		if !limited || attempt >= maxRetries {
			log.Warn().Err(err).Int("attempt", attempt).Msg("chunk extraction failed")
			return nil, false
		}
		if e.Breaker != nil && !e.Breaker.CanMakeRequest() {
			return nil, false
		}
		e.doSleep(e.backoff(attempt, err))
	}
}

func (e *Extractor) backoff(attempt int, err error) time.Duration {
	d := time.Duration(1<<uint(attempt))*backoffBase + e.jitterDur()
	if hint, ok := llm.RetryAfterHint(err); ok && hint > d {
		d = hint
	}
	return d
}

func (e *Extractor) doSleep(d time.Duration) {
	if e.sleep != nil {
		e.sleep(d)
		return
	}
	time.Sleep(d)
}

func (e *Extractor) jitterDur() time.Duration {
	if e.jitter != nil {
		return e.jitter()
	}
	return time.Duration(rand.Int63n(int64(maxJitter)))
}

// parseClaims decodes the model reply. A full-content parse is tried first;
// models that wrap the array in prose get a second chance via the outermost
// bracket pair. Records failing claim validation are dropped one by one.
func parseClaims(content string) []claim.Claim {
	var items []claim.Claim
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		start := strings.Index(content, "[")
		end := strings.LastIndex(content, "]")
		if start == -1 || end <= start {
			return nil
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &items); err != nil {
			return nil
		}
	}

	out := make([]claim.Claim, 0, len(items))
	for _, item := range items {
		c, err := claim.New(item.Subject, item.Predicate, item.Object, item.Context, item.Confidence)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
