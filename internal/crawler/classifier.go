// internal/crawler/classifier.go
//
// Automated-fetcher classification.
//
// Context
// -------
// Social-preview and search-indexer bots must receive pre-rendered HTML,
// while human browsers get the lightweight application shell.  The verdict
// is a case-insensitive substring match of the User-Agent header against a
// token list: the built-in list below plus any operator-supplied extras
// injected at construction, so tests can substitute fixtures and operators
// can extend coverage without a redeploy.
//
// Unknown agents are treated as humans.  False positives are acceptable—the
// pre-rendered document is valid markup for a human too.
package crawler

import (
	"strings"
	"sync"
)

// DefaultTokens identifies the content-preview and search-indexing agents
// the platform cares about.  Matching is substring, lower-case.
var DefaultTokens = []string{
	"googlebot",
	"bingbot",
	"yandexbot",
	"duckduckbot",
	"baiduspider",
	"slurp", // Yahoo
	"applebot",
	"facebookexternalhit",
	"facebookcatalog",
	"twitterbot",
	"linkedinbot",
	"slackbot",
	"telegrambot",
	"discordbot",
	"whatsapp",
	"skypeuripreview",
	"pinterest",
	"redditbot",
	"vkshare",
	"embedly",
	"quora link preview",
	"outbrain",
	"rogerbot",
	"showyoubot",
	"ia_archiver",
	"semrushbot",
	"ahrefsbot",
	"petalbot",
	"screaming frog",
	"chrome-lighthouse",
	"google-inspectiontool",
}

// Classifier answers "is this an automated fetcher?" for raw User-Agent
// strings.  Safe for concurrent use.  Construct with New.
type Classifier struct {
	tokens []string

	mu       sync.Mutex
	verdicts *lru // UA string → bool; bots hit with stable UAs, so this pays off
}

// New builds a Classifier from the default token list plus extras.  Extras
// are lower-cased; empty strings are dropped.
func New(extras ...string) *Classifier {
	tokens := make([]string, 0, len(DefaultTokens)+len(extras))
	tokens = append(tokens, DefaultTokens...)
	for _, t := range extras {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return &Classifier{
		tokens:   tokens,
		verdicts: newLRU(4096),
	}
}

// Classify reports whether userAgent declares a known automated fetcher.
func (c *Classifier) Classify(userAgent string) bool {
	if userAgent == "" {
		return false
	}

	c.mu.Lock()
	if v, ok := c.verdicts.get(userAgent); ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	lower := strings.ToLower(userAgent)
	verdict := false
	for _, tok := range c.tokens {
		if strings.Contains(lower, tok) {
			verdict = true
			break
		}
	}

	c.mu.Lock()
	c.verdicts.add(userAgent, verdict)
	c.mu.Unlock()
	return verdict
}
