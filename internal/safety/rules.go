package safety

import "strings"

// ruleTable is a static phrase list mapped to one flag shape. Phrases are
// lower-case; matching is plain substring inclusion on lower-cased text.
type ruleTable struct {
	riskType    RiskType
	severity    Severity
	description string
	phrases     []string
}

// Table order determines the order of hard-rule flags for a single message.
var hardRules = []ruleTable{
	{
		riskType:    RiskViolence,
		severity:    SeverityHigh,
		description: "This message contains threatening or violent language",
		phrases: []string{
			"i'll hurt you", "i'll kill", "you better", "or else", "i'll make you",
			"you'll regret", "watch your back", "you're dead", "i will destroy",
		},
	},
	{
		riskType:    RiskManipulation,
		severity:    SeverityHigh,
		description: "This message shows signs of manipulation",
		phrases: []string{
			"if you loved me", "you owe me", "after everything i've done", "nobody else will",
			"you're lucky to have me", "you made me do this", "i do everything for you", "you need me",
		},
	},
	{
		riskType:    RiskGaslighting,
		severity:    SeverityMedium,
		description: "This message may be gaslighting",
		phrases: []string{
			"you're overreacting", "that never happened", "you're crazy", "you're imagining things",
			"you're too sensitive", "i never said that", "you're making things up",
			"stop being so dramatic", "you always twist things",
		},
	},
	{
		riskType:    RiskPressuring,
		severity:    SeverityMedium,
		description: "This message applies pressure or coercion",
		phrases: []string{
			"you have to", "you need to", "prove it", "if you don't",
			"everyone else does", "don't you trust me", "you owe me this", "just this once",
		},
	},
}

func (r ruleTable) matches(lowered string) bool {
	for _, p := range r.phrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// ScanHardRules runs the static phrase tables over every non-user message.
// Each table a message triggers yields one flag whose only evidence is that
// message's full text.
func ScanHardRules(messages []Message) []RiskFlag {
	var flags []RiskFlag
	for _, m := range messages {
		if m.IsFromUser {
			continue
		}
		lowered := strings.ToLower(m.Text)
		for _, table := range hardRules {
			if !table.matches(lowered) {
				continue
			}
			flags = append(flags, RiskFlag{
				Type:        table.riskType,
				Severity:    table.severity,
				Description: table.description,
				Evidence:    []string{m.Text},
			})
		}
	}
	return flags
}
