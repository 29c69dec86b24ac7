package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"velora-scenario-service/internal/domain"
)

// Load reads, parses, normalizes and validates a catalog file.
func Load(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. Unknown fields are rejected.
func Parse(data []byte) (Bundle, error) {
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return Bundle{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Bundle{}, fmt.Errorf("parse catalog: multiple documents are not supported")
		}
		return Bundle{}, fmt.Errorf("parse catalog: %w", err)
	}
	bundle := normalize(file)
	if err := Validate(bundle); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

func normalize(file File) Bundle {
	var bundle Bundle
	for _, ft := range file.Tracks {
		track := domain.Track{
			ID:          strings.TrimSpace(ft.ID),
			Slug:        strings.TrimSpace(ft.Slug),
			Title:       strings.TrimSpace(ft.Title),
			Description: strings.TrimSpace(ft.Description),
			Order:       ft.Order,
		}
		bundle.Tracks = append(bundle.Tracks, track)
		for _, fs := range ft.Scenarios {
			bundle.Scenarios = append(bundle.Scenarios, normalizeScenario(track, fs))
		}
	}
	sort.SliceStable(bundle.Tracks, func(i, j int) bool { return bundle.Tracks[i].Order < bundle.Tracks[j].Order })
	sort.SliceStable(bundle.Scenarios, func(i, j int) bool { return bundle.Scenarios[i].Order < bundle.Scenarios[j].Order })
	return bundle
}

func normalizeScenario(track domain.Track, fs fileScenario) domain.Scenario {
	scenario := domain.Scenario{
		ID:           strings.TrimSpace(fs.ID),
		TrackID:      track.ID,
		TrackSlug:    track.Slug,
		TrackTitle:   track.Title,
		Code:         strings.TrimSpace(fs.Code),
		Title:        strings.TrimSpace(fs.Title),
		Context:      strings.TrimSpace(fs.Context),
		TriggerEvent: strings.TrimSpace(fs.TriggerEvent),
		Difficulty:   domain.Difficulty(strings.ToLower(strings.TrimSpace(fs.Difficulty))),
		Order:        fs.Order,
		Assumptions:  make([]string, 0, len(fs.Assumptions)),
	}
	for _, a := range fs.Assumptions {
		if a = strings.TrimSpace(a); a != "" {
			scenario.Assumptions = append(scenario.Assumptions, a)
		}
	}
	for _, fq := range fs.Questions {
		scenario.Questions = append(scenario.Questions, normalizeQuestion(fq))
	}
	sort.SliceStable(scenario.Questions, func(i, j int) bool {
		return scenario.Questions[i].Order < scenario.Questions[j].Order
	})
	return scenario
}

func normalizeQuestion(fq fileQuestion) domain.Question {
	q := domain.Question{
		ID:     strings.TrimSpace(fq.ID),
		Prompt: strings.TrimSpace(fq.Prompt),
		Order:  fq.Order,
		Explanation: domain.Explanation{
			CorrectExplanation:  strings.TrimSpace(fq.Explanation.value.CorrectExplanation),
			LenderPerspective:   strings.TrimSpace(fq.Explanation.value.LenderPerspective),
			BorrowerPerspective: strings.TrimSpace(fq.Explanation.value.BorrowerPerspective),
			LearningOutcome:     strings.TrimSpace(fq.Explanation.value.LearningOutcome),
		},
	}
	for _, fo := range fq.Options {
		label := strings.ToUpper(strings.TrimSpace(fo.Label))
		opt := domain.AnswerOption{
			ID:               strings.TrimSpace(fo.ID),
			Label:            label,
			Text:             strings.TrimSpace(fo.Text),
			Correct:          fo.Correct,
			Correctness:      domain.Correctness(strings.ToLower(strings.TrimSpace(fo.Correctness))),
			Scores:           fo.Scores,
			WrongExplanation: strings.TrimSpace(fo.WrongExplanation),
		}
		if opt.ID == "" {
			opt.ID = q.ID + "-" + strings.ToLower(label)
		}
		if opt.Correctness == "" {
			opt.Correctness = domain.CorrectnessIncorrect
			if opt.Correct {
				opt.Correctness = domain.CorrectnessCorrect
			}
		}
		q.Options = append(q.Options, opt)
	}
	return q
}
