package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"credit-risk/internal/common"
	"credit-risk/internal/features"

	"github.com/go-resty/resty/v2"
)

// ErrRecommenderDisabled is returned when no API key is configured.
var ErrRecommenderDisabled = errors.New("recommendations are not configured")

// Recommender produces free-text advice for a prompt.
type Recommender interface {
	Recommend(ctx context.Context, prompt string) (string, error)
}

// GeminiClient calls the generateContent endpoint of the generative-language API.
type GeminiClient struct {
	key, model, base string
	rest             *resty.Client
}

func NewGeminiClient(key, model, base string, timeout time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = common.DefaultRecommendTimeout * time.Second
	}
	r := resty.New().SetTimeout(timeout)
	return &GeminiClient{key: key, model: model, base: strings.TrimRight(base, "/"), rest: r}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) Recommend(ctx context.Context, prompt string) (string, error) {
	if c.key == "" {
		return "", ErrRecommenderDisabled
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
	result := &generateResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("key", c.key).
		SetBody(generateRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}).
		SetResult(result).
		SetError(result).
		Post(c.base + path)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		msg := resp.String()
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("API error: status %d: %s", resp.StatusCode(), msg)
	}

	var sb strings.Builder
	if len(result.Candidates) > 0 {
		for _, part := range result.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("API returned no candidates")
	}
	return text, nil
}

// BuildPrompt renders the recommendation prompt for a predicted class and
// the applicant inputs.
func BuildPrompt(predictedClass string, in map[string]any) string {
	v := func(col string) string {
		if x, ok := in[col]; ok && x != nil {
			return fmt.Sprint(x)
		}
		return "unknown"
	}
	yesNo := func(col string) string {
		if features.Coerce(in[col]) == 1 {
			return "Yes"
		}
		return "No"
	}

	var sb strings.Builder
	sb.WriteString("Based on the following financial profile and predicted credit class, provide actionable recommendations to improve the user's credit score and financial health:\n\n")
	fmt.Fprintf(&sb, "Predicted Credit Class: %s\n", predictedClass)
	sb.WriteString("User Inputs:\n")
	fmt.Fprintf(&sb, "- Monthly Income: ₹%s\n", v(common.ColNetMonthlyIncome))
	fmt.Fprintf(&sb, "- Age: %s\n", v(common.ColAge))
	fmt.Fprintf(&sb, "- Time with Current Employer: %s months\n", v(common.ColTimeWithCurrEmpr))
	fmt.Fprintf(&sb, "- Credit Card Utilization: %s%%\n", v(common.ColCCUtilization))
	fmt.Fprintf(&sb, "- Personal Loan Utilization: %s%%\n", v(common.ColPLUtilization))
	fmt.Fprintf(&sb, "- Recent Credit Inquiries (6 months): %s\n", v(common.ColEnqL6m))
	fmt.Fprintf(&sb, "- Total Credit Inquiries (12 months): %s\n", v(common.ColTotEnq))
	fmt.Fprintf(&sb, "- Delinquencies (last 12 months): %s\n", v(common.ColNumDeliq12mts))
	fmt.Fprintf(&sb, "- Max Delinquency Level: %s\n", v(common.ColMaxDelinquencyLevel))
	fmt.Fprintf(&sb, "- Number of Standard Loans: %s\n", v(common.ColNumStd))
	fmt.Fprintf(&sb, "- Credit Card Active: %s\n", yesNo(common.ColCCFlag))
	fmt.Fprintf(&sb, "- Personal Loan Active: %s\n", yesNo(common.ColPLFlag))
	fmt.Fprintf(&sb, "- Marital Status: %s\n", v(common.ColMaritalStatus))
	fmt.Fprintf(&sb, "- Education: %s\n", v(common.ColEducation))
	fmt.Fprintf(&sb, "- Gender: %s\n", v(common.ColGender))
	fmt.Fprintf(&sb, "- Credit Score: %s\n\n", v(common.ColCreditScore))
	sb.WriteString("Provide recommendations to:\n")
	sb.WriteString("1. Improve the user's credit score.\n")
	sb.WriteString("2. Enhance the user's financial health.\n\n")
	sb.WriteString("Format the recommendations clearly using bullet points or numbered lists. ")
	sb.WriteString("Keep them specific to this profile and the predicted credit class, actionable, and free of jargon.\n")
	return sb.String()
}
