package view

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"

	"github.com/nfrund/profilecard/internal/card"
)

const (
	ProfileSectionID  = "card-profile"
	PresenceSectionID = "card-presence"

	htmxScript   = "https://unpkg.com/htmx.org@2.0.4"
	htmxWSScript = "https://unpkg.com/htmx-ext-ws@2.0.2/ws.js"
)

// bioPolicy lets line breaks through and strips everything else.
var bioPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("br")
	return p
}()

var statusLabels = map[discordgo.Status]string{
	discordgo.StatusDoNotDisturb: "do not disturb",
}

// StatusLabel turns a presence status into display text.
func StatusLabel(status discordgo.Status) string {
	if status == "" {
		return "Unknown"
	}
	label, ok := statusLabels[status]
	if !ok {
		label = string(status)
	}
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(label)
}

// SanitizeBio keeps only the <br> markers produced by card.FormatBio.
func SanitizeBio(bio string) string {
	return bioPolicy.Sanitize(bio)
}

// Page renders the whole card document.
func Page(v card.View) g.Node {
	return Doctype(
		HTML(
			Lang("en"),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
				TitleEl(g.Text(pageTitle(v))),
				Script(Src(htmxScript)),
				Script(Src(htmxWSScript)),
			),
			Body(
				Class("min-h-screen bg-neutral-900 text-neutral-100 flex items-center justify-center"),
				Main(
					Class("card w-96 rounded-xl shadow-2xl overflow-hidden"),
					hx.Ext("ws"),
					g.Attr("ws-connect", "/ws"),
					ProfileSection(v),
					PresenceSection(v.Presence),
				),
			),
		),
	)
}

func pageTitle(v card.View) string {
	if v.Profile == nil {
		return "Profile"
	}
	return v.Profile.DisplayName
}

// ProfileSection renders the profile half of the card, or a placeholder when
// the profile is not loaded.
func ProfileSection(v card.View) g.Node {
	return profileSection(v, nil)
}

func profileSection(v card.View, oob g.Node) g.Node {
	if !v.Loaded || v.Profile == nil {
		return Section(
			ID(ProfileSectionID),
			oob,
			Class("p-6 bg-neutral-800 text-neutral-400"),
			P(g.Text("Profile unavailable.")),
		)
	}
	p := v.Profile

	return Section(
		ID(ProfileSectionID),
		oob,
		Class("p-6"),
		Style(gradient(p.ThemeColors)),
		Div(
			Class("flex items-center gap-4"),
			image(p.AvatarURL, p.DisplayName, "w-20 h-20 rounded-full"),
			Div(
				H1(Class("text-2xl font-bold"), g.Text(p.DisplayName)),
				P(Class("text-sm opacity-75"), g.Text(p.Username)),
				g.If(p.Pronouns != "", P(Class("text-sm"), g.Text(p.Pronouns))),
			),
		),
		g.If(len(p.Badges) > 0,
			Ul(
				Class("flex gap-1 mt-3"),
				g.Map(p.Badges, func(b card.BadgeView) g.Node {
					return Li(image(b.IconURL, b.Description, "w-5 h-5"), TitleAttr(b.Description))
				}),
			),
		),
		g.If(p.Bio != "", P(Class("mt-4 whitespace-normal"), g.Raw(SanitizeBio(p.Bio)))),
		A(
			Class("inline-block mt-4 px-4 py-2 rounded bg-indigo-600 hover:bg-indigo-500"),
			Href("/message"),
			Target("_blank"),
			Rel("noopener noreferrer"),
			g.Text("Send message"),
		),
	)
}

func gradient(colors []string) string {
	if len(colors) < 2 {
		colors = card.FormatThemeColors(nil)
	}
	return fmt.Sprintf("background: linear-gradient(%s, %s);", colors[0], colors[1])
}

// PresenceSection renders the status and activity list.
func PresenceSection(p card.PresenceView) g.Node {
	return presenceSection(p, nil)
}

func presenceSection(p card.PresenceView, oob g.Node) g.Node {
	return Section(
		ID(PresenceSectionID),
		oob,
		Class("p-6 bg-neutral-800"),
		g.If(!p.Received, P(Class("text-neutral-400"), g.Text("Waiting for presence..."))),
		g.If(p.Received,
			g.Group{
				P(Class("status status-"+string(p.Status)), g.Text(StatusLabel(p.Status))),
				g.If(len(p.Activities) == 0, P(Class("text-neutral-400"), g.Text("No current activity."))),
				Ul(
					Class("space-y-3 mt-3"),
					g.Map(p.Activities, activityItem),
				),
			},
		),
	)
}

func activityItem(a card.ActivityView) g.Node {
	if a.IsCustomStatus() {
		return Li(
			Class("activity activity-custom flex items-center gap-2"),
			g.If(a.LargeImageURL != "", image(a.LargeImageURL, "emoji", "w-6 h-6")),
			g.If(a.State != "", Span(g.Text(a.State))),
		)
	}

	return Li(
		Class("activity flex gap-3"),
		Div(
			Class("relative"),
			image(a.LargeImageURL, a.Name, "w-16 h-16 rounded"),
			g.If(a.SmallImageURL != "", image(a.SmallImageURL, a.Name, "w-6 h-6 rounded-full absolute -bottom-1 -right-1")),
		),
		Div(
			P(Class("font-semibold"), g.Text(a.Name)),
			g.If(a.Details != "", P(Class("text-sm"), g.Text(a.Details))),
			g.If(a.State != "", P(Class("text-sm"), g.Text(a.State))),
			g.If(a.Elapsed != "", P(Class("text-xs text-neutral-400"), g.Text(a.Elapsed))),
		),
	)
}

func image(src, alt, class string) g.Node {
	return Img(
		Src(src),
		Alt(alt),
		Class(class),
		g.Attr("onerror", card.ImageErrorHandler()),
	)
}

// ProfileOOB renders ProfileSection marked for an out-of-band swap.
func ProfileOOB(v card.View) g.Node {
	return profileSection(v, hx.SwapOOB("true"))
}

// PresenceOOB renders PresenceSection marked for an out-of-band swap.
func PresenceOOB(p card.PresenceView) g.Node {
	return presenceSection(p, hx.SwapOOB("true"))
}
