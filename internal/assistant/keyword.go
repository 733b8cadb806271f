package assistant

import (
	"context"
	"strings"
)

const (
	ergReply = "An electroretinogram (ERG) records the electrical response of the retina to light. " +
		"The a-wave comes from the photoreceptors and the b-wave from the bipolar cells behind them. " +
		"Together they show how well your cones and rods work, which matters for colour vision."

	fundusReply = "A fundus photograph is a detailed picture of the back of your eye showing the optic disc, the macula and the blood vessels. " +
		"The analysis looks at colour distribution and structure for signs of a colour vision deficiency, " +
		"and combining it with ERG data gives a fuller picture."

	colorBlindnessReply = "Colour blindness changes how some colours are perceived. " +
		"Protanopia affects red, deuteranopia affects green and tritanopia affects blue. " +
		"The multimodal analysis uses both fundus images and ERG data to estimate the type and its severity."

	defaultReply = "I can explain your results, how to read ERG data, what the fundus image analysis looks at " +
		"and the different colour vision conditions. Ask me about any result or medical term you want clarified."
)

var colorBlindnessKeywords = []string{"color blind", "colour blind", "protanopia", "deuteranopia"}

// KeywordModel answers from a fixed set of replies chosen by keywords in the last user message.
type KeywordModel struct{}

func (KeywordModel) Complete(_ context.Context, messages []Message) (string, error) {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = strings.ToLower(messages[i].Content)
			break
		}
	}

	switch {
	case strings.Contains(last, "erg"):
		return ergReply, nil
	case strings.Contains(last, "fundus"):
		return fundusReply, nil
	case containsAny(last, colorBlindnessKeywords):
		return colorBlindnessReply, nil
	default:
		return defaultReply, nil
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
