package extractor

// contextWindow is how many trailing messages are shown to the model.
const contextWindow = 20

const systemPrompt = `You are a relationship-safety screener. You read text conversations and report unhealthy communication patterns directed at the person labelled "Me".

You never give advice and never address the participants. You only report patterns, as JSON.`

const safetyUserPrompt = `Analyze this conversation for unhealthy patterns:

%s

Look for:
- Manipulation tactics (guilt-tripping, emotional blackmail)
- Gaslighting (denying reality, making them question themselves)
- Boundary violations (ignoring "no", pressuring)
- Controlling behavior (isolation, monitoring, jealousy)
- Disrespect or toxicity
- Threats or violence (explicit or implied)

For each pattern found, provide:
- Type of concern
- Severity (low/medium/high)
- Specific evidence (quote the messages)
- Brief explanation

Be conservative - only flag clear patterns, not misunderstandings.

Output JSON:
{
  "flags": [
    {
      "type": "manipulation" | "gaslighting" | "pressuring" | "toxicity" | "red_flag" | "violence",
      "severity": "low" | "medium" | "high",
      "description": "Brief explanation of the concern",
      "evidence": ["quote 1", "quote 2"]
    }
  ]
}

If no concerns are found, return: {"flags": []}

IMPORTANT: Respond ONLY with valid JSON matching this schema.`
