// Package media stores recorded interview answers and turns them into text.
// Answers go to a Sink (local directory or object store). When the sink
// cannot take them they are inlined into the answer URL as base64 data so
// a recording is never lost.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/llm"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxTranscribeMB matches the upstream speech-to-text file limit.
	DefaultMaxTranscribeMB = 25

	megabyte = 1 << 20
)

// Upload is one recorded answer bound to a question of a candidate.
type Upload struct {
	JobID         string
	CandidateID   string
	QuestionIndex int
	Filename      string
	ContentType   string
	Data          []byte
}

// Stored describes where an answer ended up.
type Stored struct {
	URL         string
	Filename    string
	ContentType string
	Size        int64
	IsLocal     bool
	IsFallback  bool
}

// Transcript is the text of an answer plus the figures reported with it.
type Transcript struct {
	Text         string
	FileSizeInMB float64
	Length       int
}

type Pipeline struct {
	sink          Sink
	transcriber   llm.Transcriber
	maxTranscribe int64
	logger        *zap.Logger
}

// NewPipeline stores answers in sink and transcribes them with transcriber.
// maxTranscribeMB <= 0 selects DefaultMaxTranscribeMB.
func NewPipeline(sink Sink, transcriber llm.Transcriber, maxTranscribeMB int, logger *zap.Logger) *Pipeline {
	if maxTranscribeMB <= 0 {
		maxTranscribeMB = DefaultMaxTranscribeMB
	}
	return &Pipeline{
		sink:          sink,
		transcriber:   transcriber,
		maxTranscribe: int64(maxTranscribeMB) * megabyte,
		logger:        logger.Named("media"),
	}
}

// Store writes an answer to the sink. A sink failure is not an error: the
// answer comes back as a data URL with IsFallback set.
func (p *Pipeline) Store(ctx context.Context, up Upload) (Stored, error) {
	switch {
	case strings.TrimSpace(up.JobID) == "":
		return Stored{}, fmt.Errorf("%w: jobId is required", e.ErrInvalidInput)
	case strings.TrimSpace(up.CandidateID) == "":
		return Stored{}, fmt.Errorf("%w: candidateId is required", e.ErrInvalidInput)
	case up.QuestionIndex < 0:
		return Stored{}, fmt.Errorf("%w: questionIndex must not be negative", e.ErrInvalidInput)
	case len(up.Data) == 0:
		return Stored{}, fmt.Errorf("%w: video is empty", e.ErrInvalidInput)
	}

	ext, mimeType := NormalizeType(up.ContentType, up.Filename)
	name := ObjectName(up.JobID, up.CandidateID, up.QuestionIndex, ext)
	stored := Stored{
		Filename:    name,
		ContentType: mimeType,
		Size:        int64(len(up.Data)),
	}

	if err := p.sink.Write(ctx, name, mimeType, up.Data); err != nil {
		p.logger.Error("Failed to store answer, inlining it",
			zap.String("sink", p.sink.Name()),
			zap.String("job_id", up.JobID),
			zap.String("candidate_id", up.CandidateID),
			zap.Int("question_index", up.QuestionIndex),
			zap.Error(err),
		)
		stored.URL = DataURL(mimeType, up.Data)
		stored.IsLocal = true
		stored.IsFallback = true
		return stored, nil
	}

	stored.URL = p.sink.Prefix() + name
	stored.IsLocal = p.sink.Local()
	p.logger.Info("Answer stored",
		zap.String("sink", p.sink.Name()),
		zap.String("filename", name),
		zap.Int64("size", stored.Size),
	)
	return stored, nil
}

// Open returns a stored answer by the URL Store produced for it. Data URLs
// are decoded in place.
func (p *Pipeline) Open(ctx context.Context, rawURL string) (*Object, error) {
	if strings.HasPrefix(rawURL, "data:") {
		mimeType, data, err := decodeDataURL(rawURL, p.maxTranscribe)
		if err != nil {
			return nil, err
		}
		return &Object{Body: io.NopCloser(bytes.NewReader(data)), Size: int64(len(data)), ContentType: mimeType}, nil
	}

	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	name, ok := strings.CutPrefix(path, p.sink.Prefix())
	if !ok {
		return nil, fmt.Errorf("%w: %s", e.ErrMediaNotFound, rawURL)
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return p.sink.Open(ctx, name)
}

// Transcribe converts a stored answer to text. Files over the size ceiling
// are rejected before anything is sent upstream.
func (p *Pipeline) Transcribe(ctx context.Context, rawURL string) (Transcript, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Transcript{}, fmt.Errorf("%w: videoUrl is required", e.ErrInvalidInput)
	}

	obj, err := p.Open(ctx, rawURL)
	if err != nil {
		return Transcript{}, err
	}
	defer obj.Body.Close()

	if obj.Size > p.maxTranscribe {
		return Transcript{}, fmt.Errorf("%w: %.2f MB exceeds the %d MB limit",
			e.ErrMediaTooLarge, sizeInMB(obj.Size), p.maxTranscribe/megabyte)
	}

	filename := "answer" + extensionOf(obj.ContentType)
	text, err := p.transcriber.Transcribe(ctx, filename, obj.Body)
	if err != nil {
		if errors.Is(err, e.ErrUnsupportedMedia) {
			return Transcript{}, fmt.Errorf("%w: the recording could not be processed, record the answer again as webm, mp4, mov or ogg", e.ErrUnsupportedMedia)
		}
		p.logger.Error("Transcription failed", zap.String("url", redact(rawURL)), zap.Error(err))
		return Transcript{}, err
	}

	text = strings.TrimSpace(text)
	return Transcript{
		Text:         text,
		FileSizeInMB: sizeInMB(obj.Size),
		Length:       utf8.RuneCountInString(text),
	}, nil
}

// ObjectName is the stored name of an answer: job, candidate and question
// plus a random suffix so re-recordings never overwrite each other.
func ObjectName(jobID, candidateID string, questionIndex int, ext string) string {
	return fmt.Sprintf("%s_%s_q%d_%s%s", safe(jobID), safe(candidateID), questionIndex, uuid.NewString(), ext)
}

// DataURL inlines data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeDataURL(raw string, limit int64) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", nil, fmt.Errorf("%w: malformed data URL", e.ErrInvalidInput)
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > limit+2 {
		return "", nil, fmt.Errorf("%w: inline answer exceeds the %d MB limit", e.ErrMediaTooLarge, limit/megabyte)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: malformed data URL: %v", e.ErrInvalidInput, err)
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	return mimeType, data, nil
}

// safe keeps IDs usable as a single path segment.
func safe(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, id)
}

func sizeInMB(n int64) float64 {
	return math.Round(float64(n)/megabyte*100) / 100
}

// redact keeps inline payloads out of the logs.
func redact(rawURL string) string {
	if strings.HasPrefix(rawURL, "data:") {
		header, _, _ := strings.Cut(rawURL, ",")
		return header + ",..."
	}
	return rawURL
}
