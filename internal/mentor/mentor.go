// Package mentor builds the financial mentor's replies: the persona prompt,
// the remote generation call and the locally derived reference links.
package mentor

import (
	"context"
	"strings"
)

// Greeting seeds every new conversation.
const Greeting = "नमस्ते! मैं आपकी AI मेंटर दीदी हूं। आप मुझसे बचत, निवेश, और पैसों के बारे में कुछ भी पूछ सकती हैं। " +
	"Hello! I am your AI Mentor Sister. You can ask me anything about savings, investment, and money."

// MissingCredentialReply is returned instead of calling the backend when no
// API key has been entered.
const MissingCredentialReply = "कृपया पहले अपनी API key दर्ज करें, फिर मैं आपके सवाल का जवाब दे पाऊंगी। " +
	"Please enter your API key first, then I can answer your question."

// ApologyReply stands in for any failed generation.
const ApologyReply = "माफ़ कीजिए, अभी तकनीकी समस्या आ रही है। कृपया थोड़ी देर बाद फिर से पूछें। " +
	"Sorry, I am having a technical problem right now. Please ask again in a little while."

// Persona is prepended to every query.
const Persona = `You are "AI Mentor Didi", a warm elder-sister financial mentor for women in India.
Answer in simple Hindi followed by the same answer in simple English, separated by " | ".
Be practical: give at most three concrete steps with small rupee amounts where useful.
Cover savings, budgeting, bank accounts, government schemes, safe investment and small business.
Never recommend a specific stock, never ask for passwords or account numbers.
Keep the whole answer under 120 words so it can be read aloud.`

var QuickQuestions = []string{
	"मैं हर महीने कितना पैसा बचाऊं? | How much should I save monthly?",
	"बैंक में खाता कैसे खोलें? | How to open a bank account?",
	"छोटे बिजनेस कैसे शुरू करें? | How to start small business?",
	"पैसा कहां निवेश करें? | Where to invest money?",
}

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

var (
	// Verb forms of बचाना are listed one by one; the bare stem would also
	// match बचाव (protection).
	savingsKeywords = []string{
		"save", "saving", "बचत",
		"बचाऊं", "बचाऊँ", "बचाएं", "बचाएँ", "बचाना", "बचाने", "बचाता", "बचाती", "बचाया", "बचाओ",
	}
	businessKeywords = []string{"business", "बिजनेस", "व्यापार"}

	savingsLinks = []Link{
		{Title: "महिलाओं के लिए बचत टिप्स | Savings Tips for Women", URL: "https://youtube.com/watch?v=example1"},
		{Title: "घरेलू बचत के तरीके | Home Savings Methods", URL: "https://youtube.com/watch?v=example2"},
	}
	businessLinks = []Link{
		{Title: "महिलाओं के लिए बिजनेस आइडिया | Business Ideas for Women", URL: "https://youtube.com/watch?v=example3"},
	}
)

// ReferenceLinks matches the raw query against fixed keyword lists. Savings
// wins over business when both match. The result is a fresh slice.
func ReferenceLinks(query string) []Link {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, savingsKeywords):
		return append([]Link(nil), savingsLinks...)
	case containsAny(q, businessKeywords):
		return append([]Link(nil), businessLinks...)
	}
	return nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Request is one generation call.
type Request struct {
	Persona string
	Query   string
}

// Prompt is the single text part sent to backends without a system role.
func (r Request) Prompt() string {
	if r.Persona == "" {
		return r.Query
	}
	return r.Persona + "\n\nUser question: " + r.Query
}

// Backend performs one remote generation with the given API key.
type Backend interface {
	Complete(ctx context.Context, req Request, key string) (string, error)
}
