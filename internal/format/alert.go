package format

import (
	"fmt"
	"strings"

	"smart-money-tracker/internal/address"
	"smart-money-tracker/internal/domain"
)

// Telegram limits.
const (
	MaxTextLength    = 4096
	MaxCaptionLength = 1024
)

// Alert is everything a delivered signal shows.
type Alert struct {
	Signal      domain.Signal
	Wallets     []domain.Participant // new wallets only
	Repeats     int                  // wallets already known for the token
	MeanScore   float64
	Scored      int
	Security    domain.SecurityReport
	SignalCount int               // signals seen for the token, this one included
	FirstPrice  float64           // first price seen for the token
	Ranks       map[string]string // optional wallet -> rank label
}

// Link is a labelled URL rendered as a button.
type Link struct {
	Label string
	URL   string
}

// Message is one rendered payload variant.
type Message struct {
	Text    string // full HTML text, within MaxTextLength
	Caption string // short HTML caption for an image, within MaxCaptionLength
	Links   []Link
}

// Detailed renders the full variant for the primary sink, including wallet
// addresses and provider statistics.
func Detailed(a Alert) Message {
	head := header(a, true)
	var lines []string
	for i, w := range a.Wallets {
		lines = append(lines, walletLine(a.Signal.ChainID, i+1, w, a.Ranks[w.WalletAddress]))
	}
	return Message{
		Text:    assemble(head, "<b>New wallets</b>", lines, MaxTextLength),
		Caption: assemble(header(a, false), "", nil, MaxCaptionLength),
		Links:   links(a, true),
	}
}

// Redacted renders the public variant for the secondary sink: aggregate
// numbers only, no wallet addresses.
func Redacted(a Alert) Message {
	head := header(a, false)
	return Message{
		Text:    assemble(head, "", nil, MaxTextLength),
		Caption: assemble(head, "", nil, MaxCaptionLength),
		Links:   links(a, false),
	}
}

func header(a Alert, detailed bool) []string {
	s := a.Signal
	sym := s.TokenSymbol
	if sym == "" {
		sym = address.Short(s.TokenAddress)
	}

	title := fmt.Sprintf("<b>$%s</b> smart money entry", Escape(sym))
	if a.SignalCount > 1 {
		title += fmt.Sprintf(" (signal #%d)", a.SignalCount)
	}
	out := []string{title}
	if detailed {
		out = append(out, "<code>"+Escape(s.TokenAddress)+"</code>")
	}
	out = append(out, "")
	out = append(out, fmt.Sprintf("Price: %s · MCap: %s", Price(s.PriceAtSignal), Compact(s.McapAtSignal)))
	if a.SignalCount > 1 {
		if pct, ok := Change(a.FirstPrice, s.PriceAtSignal); ok {
			out = append(out, fmt.Sprintf("First seen: %s (%s)", Price(a.FirstPrice), Percent(pct)))
		}
	}
	out = append(out, "Security: "+securityLine(a.Security))
	wallets := fmt.Sprintf("%d new", len(a.Wallets))
	if a.Repeats > 0 {
		wallets += fmt.Sprintf(", %d repeat", a.Repeats)
	}
	out = append(out, fmt.Sprintf("Entry score: <b>%s</b> (%d scored, %s)", Score(a.MeanScore), a.Scored, wallets))
	return out
}

func securityLine(r domain.SecurityReport) string {
	st := r.Status
	if st == "" {
		st = domain.SecurityUnknown
	}
	line := string(st)
	if r.RiskScore > 0 {
		line += fmt.Sprintf(" (risk %s)", decimalString(r.RiskScore))
	}
	if len(r.Flags) > 0 {
		line += ": " + Escape(strings.Join(r.Flags, ", "))
	}
	return line
}

func walletLine(chainID string, n int, w domain.Participant, rank string) string {
	label := Escape(address.Short(w.WalletAddress))
	if u := WalletURL(chainID, w.WalletAddress); u != "" {
		label = fmt.Sprintf(`<a href="%s">%s</a>`, Escape(u), label)
	}
	score := "unscored"
	if w.Scored {
		score = "score " + Score(w.EntryScore)
	}
	line := fmt.Sprintf("%d. %s %s · PnL %s · ROI %s · WR %s",
		n, label, score, Compact(w.ProviderPnL), Percent(w.ProviderROI), Percent(w.ProviderWinRate))
	if rank != "" {
		line += " · " + Escape(rank)
	}
	return line
}

// assemble joins head, then the titled list, dropping list lines that would
// push the text past limit and noting how many were left out.
func assemble(head []string, title string, list []string, limit int) string {
	text := strings.Join(head, "\n")
	if len(text) > limit {
		return truncate(text, limit)
	}
	if len(list) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(title)
	for i, line := range list {
		need := 1 + len(line)
		if rest := len(list) - i - 1; rest > 0 {
			need += len(moreLine(rest))
		}
		if b.Len()+need > limit {
			b.WriteString(moreLine(len(list) - i))
			break
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return truncate(b.String(), limit)
}

func moreLine(n int) string {
	return fmt.Sprintf("\n…and %d more", n)
}

// truncate cuts s to at most limit bytes on a line boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := strings.LastIndex(s[:limit], "\n")
	if cut <= 0 {
		cut = limit
	}
	return s[:cut]
}

func links(a Alert, detailed bool) []Link {
	var out []Link
	if u := ChartURL(a.Signal.ChainID, a.Signal.TokenAddress); u != "" {
		out = append(out, Link{Label: "Chart", URL: u})
	}
	if detailed {
		if u := TokenURL(a.Signal.ChainID, a.Signal.TokenAddress); u != "" {
			out = append(out, Link{Label: "Explorer", URL: u})
		}
	}
	return out
}
