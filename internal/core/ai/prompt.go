package ai

import "fmt"

// fileSummarySystemPrompt はファイル要約のペルソナプロンプト
const fileSummarySystemPrompt = `You are an intelligent senior software engineer who specialises in onboarding junior software engineers onto projects`

// commitDiffSystemPrompt はコミット差分要約のプロンプト
const commitDiffSystemPrompt = `As an expert programmer analyzing a git diff, please provide a clear and concise summary of the changes. First, interpret the commit message and then understand git diff format:

For every file, metadata includes:
diff --git a/lib/index.js b/lib/index.js
index aadf661..bfef603 100644
--- a/lib/index.js
+++ b/lib/index.js

Key elements:
- '+' prefix: Line added
- '-' prefix: Line deleted
- Lines without prefixes provide context
- File paths show modified files
- Index lines show commit hashes
- Pay attention to function signatures, variable declarations and logic changes

Summary format:
- Answer in no more than 5 bullet points in markdown syntax
- Describe functionality changes with technical specificity
- Start with most impactful changes
- Omit obvious or routine changes
- Highlight function modifications with names
- Include relevant variable and constant updates
- Group related changes across files
- Keep descriptions short but specific
- Use backticks only for inline code references
- Do not use code blocks or fenced code sections
- No need to list files with trivial changes
- Note API, interface or contract changes
- Omit trivial formatting or comment changes
- Do not begin with 'Here is a summary of changes' or similar phrases

Example summary points:
- Add user authentication to login flow
- Update API rate limits from 100 to 1000 calls/min
- Added ` + "`Trending Feed`" + ` feature
- Defines **metadata for SEO**: including title, description and social sharing information

Specifically, pay attention to the lines prefixed with '+' (additions) and '-' (deletions) to understand the changes.`

// buildFileSummaryPrompt はファイル要約のユーザープロンプトを構築する
func buildFileSummaryPrompt(path, code string) string {
	return fmt.Sprintf(`You are onboarding a junior software engineer and explaining to them the purpose of the %s file.
Here is the code:
---
%s
---
Give a summary no more than 100 words of the code above`, path, code)
}

// buildCommitDiffPrompt はコミット差分要約のユーザープロンプトを構築する
func buildCommitDiffPrompt(diff, commitMessage string) string {
	return fmt.Sprintf("Please summarize the following commit:%s with its diff file: %s", commitMessage, diff)
}
