// Package scoring implements the submission pipeline: reconcile the user's
// answers against the lazily-fetched answer key, convert raw correct counts
// into scaled scores, persist the result best-effort, and hand the summary
// off to the results view.
package scoring

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/openprep/exam-gateway/internal/config"
	"github.com/openprep/exam-gateway/internal/handoff"
	"github.com/openprep/exam-gateway/internal/model"
	"github.com/openprep/exam-gateway/internal/scale"
	"github.com/openprep/exam-gateway/internal/session"
	"github.com/openprep/exam-gateway/internal/upstream"
	"github.com/rs/zerolog"
)

// ErrAnswerKeyUnavailable means the answer-key fetch failed, which is fatal
// to the submission. The session stays recoverable and the user may retry.
var ErrAnswerKeyUnavailable = errors.New("answer key unavailable")

// RetryQueue re-attempts failed persistence POSTs in the background.
type RetryQueue interface {
	Enqueue(ctx context.Context, examID, token string, payload *model.SubmissionPayload) error
}

// Pipeline wires the scoring steps together. It implements session.Submitter.
type Pipeline struct {
	client    *upstream.Client
	store     handoff.Store
	table     *scale.Table
	queue     RetryQueue // nil when no Redis is configured
	namespace string
	log       zerolog.Logger
}

// NewPipeline creates a Pipeline. queue may be nil.
func NewPipeline(client *upstream.Client, store handoff.Store, table *scale.Table, queue RetryQueue, namespace string, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		client:    client,
		store:     store,
		table:     table,
		queue:     queue,
		namespace: namespace,
		log:       log.With().Str("component", "scoring_pipeline").Logger(),
	}
}

// Submit scores a session snapshot. Only the answer-key fetch can fail the
// submission; the persistence POST and the handoff write are best-effort and
// never block the user from seeing their result.
func (p *Pipeline) Submit(ctx context.Context, snap session.Snapshot, ts upstream.TokenSource) (*model.ScoreSummary, error) {
	// Project the answer map onto global question numbers, which is what the
	// answer key and the persistence endpoint are keyed by.
	byNumber := make(map[int]string, len(snap.Answers))
	for _, q := range snap.Questions {
		if ans, ok := snap.Answers[q.ID]; ok {
			byNumber[q.Number] = ans
		}
	}

	keySections, err := p.client.GetAnswerKey(ctx, snap.ExamID, ts)
	if err != nil {
		return nil, errors.Join(ErrAnswerKeyUnavailable, err)
	}

	summary, details := reconcile(keySections, byNumber, p.table)

	payload := buildPayload(byNumber, summary)
	if err := p.client.SubmitResult(ctx, snap.ExamID, ts, payload); err != nil {
		// The user already has the computed score; persistence is retried
		// in the background.
		p.log.Warn().Err(err).
			Str("exam_id", snap.ExamID).
			Int("answers", len(payload.Answers)).
			Msg("Result persistence failed")
		p.enqueueRetry(ctx, snap.ExamID, ts, payload)
	}

	key := config.HandoffKey.ResultKey(p.namespace, snap.ExamID)
	value := model.HandoffValue{
		Summary:         *summary,
		DetailedAnswers: details,
		Meta: model.HandoffMeta{
			ExamID:         snap.ExamID,
			AnsweredCount:  len(snap.Answers),
			TotalQuestions: len(snap.Questions),
		},
	}
	if err := p.store.Put(ctx, key, value); err != nil {
		// The results view re-fetches from upstream when the handoff is
		// missing, so this is also non-fatal.
		p.log.Warn().Err(err).
			Str("exam_id", snap.ExamID).
			Msg("Handoff write failed")
	}

	p.log.Info().
		Str("exam_id", snap.ExamID).
		Int("total_correct", summary.TotalCorrect).
		Int("total_score", summary.TotalScore).
		Msg("Submission scored")

	return summary, nil
}

// reconcile compares user answers to the key, trimmed, exact string equality.
func reconcile(keySections []model.Section, byNumber map[int]string, table *scale.Table) (*model.ScoreSummary, []model.AnswerDetail) {
	var listeningCorrect, readingCorrect int
	var details []model.AnswerDetail

	for i := range keySections {
		sec := &keySections[i]
		skill := sec.Skill()
		for _, raw := range sec.Questions {
			want := strings.TrimSpace(raw.KeyAnswer())
			got := strings.TrimSpace(byNumber[raw.Number])
			correct := want != "" && got == want

			if correct {
				if skill == model.SkillListening {
					listeningCorrect++
				} else {
					readingCorrect++
				}
			}
			details = append(details, model.AnswerDetail{
				QuestionNumber: raw.Number,
				Skill:          skill,
				UserAnswer:     got,
				CorrectAnswer:  want,
				Correct:        correct,
			})
		}
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].QuestionNumber < details[j].QuestionNumber
	})

	listeningScore := table.Convert(model.SkillListening, listeningCorrect)
	readingScore := table.Convert(model.SkillReading, readingCorrect)

	return &model.ScoreSummary{
		ListeningCorrect: listeningCorrect,
		ReadingCorrect:   readingCorrect,
		ListeningScore:   listeningScore,
		ReadingScore:     readingScore,
		TotalCorrect:     listeningCorrect + readingCorrect,
		TotalScore:       listeningScore + readingScore,
	}, details
}

func buildPayload(byNumber map[int]string, summary *model.ScoreSummary) *model.SubmissionPayload {
	answers := make([]model.SubmittedAnswer, 0, len(byNumber))
	for number, ans := range byNumber {
		answers = append(answers, model.SubmittedAnswer{QuestionNumber: number, UserAnswer: ans})
	}
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].QuestionNumber < answers[j].QuestionNumber
	})

	return &model.SubmissionPayload{
		Answers:           answers,
		Mark:              summary.TotalScore,
		RightAnswerNumber: summary.TotalCorrect,
	}
}

func (p *Pipeline) enqueueRetry(ctx context.Context, examID string, ts upstream.TokenSource, payload *model.SubmissionPayload) {
	if p.queue == nil {
		return
	}
	token, err := ts.Token(ctx)
	if err != nil {
		p.log.Error().Err(err).Str("exam_id", examID).Msg("Retry enqueue skipped, no token")
		return
	}
	if err := p.queue.Enqueue(ctx, examID, token, payload); err != nil {
		p.log.Error().Err(err).Str("exam_id", examID).Msg("Retry enqueue failed")
	}
}
