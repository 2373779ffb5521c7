package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/co2pipeline/internal/logging"
)

// ErrNoAPIKey is returned by NewNarrator when no key is configured.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")

// Narrator writes a short plain-English note about a run's air quality.
type Narrator struct {
	client openai.Client
	model  string
}

// NewNarrator reads OPENAI_API_KEY for authentication. Extra options are
// passed to the client.
func NewNarrator(opts ...option.RequestOption) (*Narrator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Narrator{
		client: client,
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Narrate asks the model to describe s in a few sentences.
func (n *Narrator) Narrate(ctx context.Context, s Summary) (string, error) {
	log := logging.Component("report")
	log.Info("generating air quality narrative", "model", n.model)

	resp, err := n.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: n.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You summarise indoor CO2 sensor data for building occupants. " +
				"Write three or four plain sentences. Mention ventilation if levels were high."),
			openai.UserMessage(prompt(s)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no narrative returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty narrative returned")
	}
	return text, nil
}

func prompt(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Readings: %d (%d filled by interpolation)\n", s.Rows, s.Imputed)
	if !s.First.IsZero() {
		fmt.Fprintf(&b, "Period: %s to %s\n", s.First.Format("2006-01-02 15:04 MST"), s.Last.Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "Mean: %.0f ppm, median %.0f ppm, standard deviation %.0f ppm\n", s.Mean, s.Median, s.StdDev)
	fmt.Fprintf(&b, "Range: %.0f to %.0f ppm, 95th percentile %.0f ppm\n", s.Min, s.Max, s.P95)
	fmt.Fprintf(&b, "Share of readings above %d ppm: %.0f%%\n", HighCO2Threshold, s.ShareHigh*100)
	return b.String()
}
