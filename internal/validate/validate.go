// Package validate treats a finished wiki article as one more source: it
// extracts the article's claims, optionally cross-checks the important ones
// against a fresh web search, resolves the union, and scores the article.
package validate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agriwiki/agrifuse/internal/claim"
	"github.com/agriwiki/agrifuse/internal/extract"
	"github.com/agriwiki/agrifuse/internal/judge"
	"github.com/agriwiki/agrifuse/internal/llm"
	"github.com/agriwiki/agrifuse/internal/resolve"
	"github.com/agriwiki/agrifuse/internal/workflow"
)

// importantPredicates names the claim kinds worth a web cross-check: facts
// about authorship, origin, and awards, where wiki articles most often go
// stale or exaggerate. Matching is substring over the case-folded predicate.
var importantPredicates = []string{
	"tác giả", "nguồn gốc", "giải thưởng", "thành tích", "danh hiệu",
	"tác giả/nguồn gốc", "giải thưởng/thành tích",
}

const minArticleLength = 100

// WebJudgment records one article-claim / web-claim comparison.
type WebJudgment struct {
	ArticleClaim claim.Claim    `json:"articleClaim"`
	WebClaim     claim.Claim    `json:"webClaim"`
	Relation     judge.Relation `json:"relation"`
	Confidence   float64        `json:"confidence"`
	Reasoning    string         `json:"reasoning"`
}

// WebValidation summarizes the optional web cross-check.
type WebValidation struct {
	Enabled        bool          `json:"enabled"`
	WebClaimsCount int           `json:"webClaimsCount"`
	Results        []WebJudgment `json:"validationResults,omitempty"`
}

// Result is the full validation report for one article.
type Result struct {
	Success         bool               `json:"success"`
	ArticleTitle    string             `json:"articleTitle"`
	ArticleClaims   []claim.Claim      `json:"claims"`
	Resolved        []resolve.Resolved `json:"resolvedClaims"`
	ValidationScore float64            `json:"validationScore"`
	WebValidation   WebValidation      `json:"webValidation"`
	Warnings        []string           `json:"warnings,omitempty"`
	Errors          []string           `json:"errors,omitempty"`
}

// Validator wires the components an article check needs. Workflow and Judge
// are only consulted when web validation is requested; either may be nil,
// which silently disables the cross-check.
type Validator struct {
	Extractor *extract.Extractor
	Judge     *judge.Judge
	Resolver  *resolve.Resolver
	Workflow  *workflow.Pipeline
}

// ValidateFile reads a markdown article from disk and validates it.
func (v *Validator) ValidateFile(ctx context.Context, path string, useWeb bool) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Errors: []string{fmt.Sprintf("Lỗi đọc file: %v", err)}}
	}
	return v.ValidateArticle(ctx, data, useWeb)
}

// ValidateArticle validates one markdown article. Quota exhaustion is the only
// per-source failure that aborts: without LLM budget there is nothing
// meaningful to validate.
func (v *Validator) ValidateArticle(ctx context.Context, article []byte, useWeb bool) Result {
	var res Result

	title, text := StripMarkdown(article)
	res.ArticleTitle = title
	if len(text) < minArticleLength {
		res.Warnings = append(res.Warnings, "Nội dung bài viết quá ngắn, có thể không đủ thông tin để validate")
	}

	claims, err := v.Extractor.FromText(ctx, text)
	if err != nil {
		if llm.IsQuotaExhausted(err) || llm.IsRateLimited(err) {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"Quota API đã hết. Lỗi: %v. Giải pháp: đợi quota reset sau 24 giờ, hoặc nâng cấp tier, hoặc thử lại sau vài phút.", err))
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("Lỗi khi extract claims: %v", err))
		}
		return res
	}
	res.ArticleClaims = claims

	if len(claims) == 0 {
		res.Warnings = append(res.Warnings, "Không trích xuất được claim nào từ bài viết")
		res.Success = true
		return res
	}

	var webClaims []claim.Claim
	if useWeb && v.Workflow != nil {
		webClaims = v.webCrossCheck(ctx, &res, claims, title)
	}

	all := append(append([]claim.Claim{}, claims...), webClaims...)
	res.Resolved = v.Resolver.Resolve(ctx, all)

	contradicted := 0
	for _, r := range res.Resolved {
		if r.HasContradictions {
			contradicted++
		}
	}
	if contradicted > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"⚠️ Phát hiện %d claim có mâu thuẫn. Vui lòng kiểm tra lại nguồn thông tin.", contradicted))
	}

	res.ValidationScore = validationScore(res.Resolved)
	v.heuristicWarnings(&res, claims)
	res.Success = true
	return res
}

// webCrossCheck runs the crop workflow on the article's main subject and
// judges the important article claims against matching web claims.
func (v *Validator) webCrossCheck(ctx context.Context, res *Result, claims []claim.Claim, title string) []claim.Claim {
	res.WebValidation.Enabled = true

	subject := mainSubject(claims)
	if subject == "" {
		subject = title
	}
	if subject == "" {
		return nil
	}

	state, err := v.Workflow.Run(ctx, subject, "")
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Không thể tìm kiếm web để validate: %v", err))
		return nil
	}
	webClaims := state.Claims
	res.WebValidation.WebClaimsCount = len(webClaims)
	log.Debug().Str("subject", subject).Int("webClaims", len(webClaims)).Msg("web cross-check")

	if v.Judge == nil {
		return webClaims
	}
	for _, ac := range claims {
		if !isImportantPredicate(ac.Predicate) {
			continue
		}
		for _, wc := range webClaims {
			if ac.SubjectKey() != wc.SubjectKey() || ac.PredicateKey() != wc.PredicateKey() {
				continue
			}
			verdict := v.Judge.Judge(ctx, ac, wc)
			res.WebValidation.Results = append(res.WebValidation.Results, WebJudgment{
				ArticleClaim: ac,
				WebClaim:     wc,
				Relation:     verdict.Relation,
				Confidence:   verdict.Confidence,
				Reasoning:    verdict.Reasoning,
			})
			if verdict.Relation == judge.Contradicted {
				src := wc.SourceURL
				if src == "" {
					src = "N/A"
				}
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"⚠️ Mâu thuẫn phát hiện: '%s - %s: %s' khác với nguồn web '%s' (Nguồn: %s)",
					ac.Subject, ac.Predicate, ac.Object, wc.Object, src))
			}
		}
	}
	return webClaims
}

// mainSubject returns the most frequent subject, ties broken by first
// occurrence.
func mainSubject(claims []claim.Claim) string {
	counts := map[string]int{}
	var order []string
	display := map[string]string{}
	for _, c := range claims {
		k := c.SubjectKey()
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			display[k] = c.Subject
		}
		counts[k]++
	}
	best := ""
	bestCount := 0
	for _, k := range order {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return display[best]
}

func isImportantPredicate(predicate string) bool {
	p := strings.ToLower(strings.TrimSpace(predicate))
	for _, imp := range importantPredicates {
		if strings.Contains(p, imp) {
			return true
		}
	}
	return false
}

// validationScore blends average gold confidence with average cluster score.
// The cluster score is an open-ended vote sum, so the blend can exceed 1 for
// well-sourced articles; callers treat it as a ranking signal, not a
// probability.
func validationScore(resolved []resolve.Resolved) float64 {
	if len(resolved) == 0 {
		return 0
	}
	var confSum, scoreSum float64
	for _, r := range resolved {
		confSum += r.Gold.Confidence
		scoreSum += r.TotalScore
	}
	n := float64(len(resolved))
	return 0.6*(confSum/n) + 0.4*(scoreSum/n)
}

func (v *Validator) heuristicWarnings(res *Result, claims []claim.Claim) {
	low := 0
	noObject := 0
	for _, c := range claims {
		if c.Confidence < 0.5 {
			low++
		}
		if strings.TrimSpace(c.Object) == "" {
			noObject++
		}
	}
	if low > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Có %d claim có độ tin cậy thấp (<0.5). Nên kiểm tra lại nguồn thông tin.", low))
	}
	if noObject*2 > len(claims) {
		res.Warnings = append(res.Warnings,
			"Hơn 50% claims không có số liệu cụ thể. Bài viết có thể thiếu thông tin định lượng quan trọng.")
	}
}
