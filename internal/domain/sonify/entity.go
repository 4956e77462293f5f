package sonify

import (
	"time"
)

// ID of a sonification
type ID string

// Status enum
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Fallback values used when image analysis degrades.
const (
	FallbackCaption = "an image"
	FallbackMood    = "neutral"
)

// MoodScore is one (label, confidence) pair of a mood ranking.
type MoodScore struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// AnalysisResult is produced once per image and not modified afterwards.
type AnalysisResult struct {
	Caption     string      `json:"caption"`
	PrimaryMood string      `json:"primary_mood"`
	MoodScores  []MoodScore `json:"mood_scores"`
	ImagePath   string      `json:"image_path,omitempty"`
}

// FallbackAnalysis returns the analysis used when both delegates failed.
func FallbackAnalysis(imagePath string) AnalysisResult {
	return AnalysisResult{
		Caption:     FallbackCaption,
		PrimaryMood: FallbackMood,
		MoodScores:  []MoodScore{{Label: FallbackMood, Confidence: 1.0}},
		ImagePath:   imagePath,
	}
}

// GenerationRequest is handed to the Synthesizer.
type GenerationRequest struct {
	Prompt          string `json:"prompt"`
	Mood            string `json:"mood"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Audio is the raw output of a Synthesizer.
type Audio struct {
	Samples    []float32
	SampleRate int
}

// Seconds is the length of the audio derived from its samples.
func (a Audio) Seconds() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// GenerationResult describes the audio that was actually produced.
type GenerationResult struct {
	Waveform          []float32 `json:"-"`
	SampleRate        int       `json:"sample_rate"`
	PromptUsed        string    `json:"prompt_used"`
	DurationSeconds   float64   `json:"duration_seconds"`
	RequestedDuration int       `json:"requested_duration"`
	EffectiveDuration int       `json:"effective_duration"`
	Retried           bool      `json:"retried,omitempty"`
}

// NewGenerationResult derives the duration from the waveform length.
func NewGenerationResult(audio Audio, prompt string) GenerationResult {
	return GenerationResult{
		Waveform:        audio.Samples,
		SampleRate:      audio.SampleRate,
		PromptUsed:      prompt,
		DurationSeconds: audio.Seconds(),
	}
}

// Result is the merged output of one pipeline run. The embedded structs use
// disjoint JSON names so no generation field shadows an analysis field.
type Result struct {
	AnalysisResult
	GenerationResult
}

// Record is the persisted form of a sonification.
type Record struct {
	ID                ID          `json:"id"`
	TenantID          string      `json:"tenant_id"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	Status            Status      `json:"status"`
	ImageName         string      `json:"image_name,omitempty"`
	ImageURL          string      `json:"image_url,omitempty"`
	Caption           string      `json:"caption,omitempty"`
	PrimaryMood       string      `json:"primary_mood,omitempty"`
	MoodScores        []MoodScore `json:"mood_scores,omitempty"`
	Prompt            string      `json:"prompt,omitempty"`
	RequestedDuration int         `json:"requested_duration"`
	EffectiveDuration int         `json:"effective_duration"`
	DurationSeconds   float64     `json:"duration_seconds"`
	SampleRate        int         `json:"sample_rate,omitempty"`
	Retried           bool        `json:"retried"`
	AudioKey          string      `json:"audio_key,omitempty"`
	AudioURL          string      `json:"audio_url,omitempty"`
	Error             string      `json:"error,omitempty"`
	ProcessingMS      int64       `json:"processing_ms"`
}

// Apply copies a pipeline result into the record.
func (r *Record) Apply(res *Result) {
	r.Caption = res.Caption
	r.PrimaryMood = res.PrimaryMood
	r.MoodScores = res.MoodScores
	r.Prompt = res.PromptUsed
	r.EffectiveDuration = res.EffectiveDuration
	r.DurationSeconds = res.DurationSeconds
	r.SampleRate = res.SampleRate
	r.Retried = res.Retried
}

// Summary aggregates records of a tenant over a period.
type Summary struct {
	Total           int            `json:"total"`
	Success         int            `json:"success"`
	Failed          int            `json:"failed"`
	AverageDuration float64        `json:"average_duration_seconds"`
	Moods           map[string]int `json:"moods"`
}
