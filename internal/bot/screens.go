package bot

import (
	"fmt"
	"strings"

	"vitrine/internal/domain"
)

// Screen is what a navigation reset shows in the chat.
type Screen struct {
	Text string
	// Like is set for listing detail screens.
	Like *LikeButton
	// Links are in-app navigation buttons (feed entries, shop-front listings).
	Links []LinkButton
}

// LikeButton is the like control of a listing card.
type LikeButton struct {
	AnnonceID string
	Slug      string
	State     domain.LikeState
}

// LinkButton opens a listing without going through deep-link routing.
type LinkButton struct {
	Label     string
	AnnonceID string
	Slug      string
}

func (b LikeButton) Label() string {
	if b.State.IsLiked {
		return fmt.Sprintf("♥ %d", b.State.LikesCount)
	}
	return fmt.Sprintf("♡ %d", b.State.LikesCount)
}

func annonceScreen(a *domain.Annonce, state domain.LikeState) Screen {
	var sb strings.Builder
	sb.WriteString(a.Title)
	if a.Price > 0 {
		fmt.Fprintf(&sb, "\n%s", formatPrice(a.Price, a.Currency))
	}
	if a.City != "" {
		fmt.Fprintf(&sb, "\n📍 %s", a.City)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n\n%s", a.Description)
	}
	if a.VitrineSlug != "" {
		fmt.Fprintf(&sb, "\n\nVitrine: %s", a.VitrineSlug)
	}
	return Screen{
		Text: sb.String(),
		Like: &LikeButton{AnnonceID: a.ID, Slug: a.Slug, State: state},
	}
}

func vitrineScreen(v *domain.Vitrine) Screen {
	var sb strings.Builder
	sb.WriteString(v.Name)
	if v.City != "" {
		fmt.Fprintf(&sb, "\n📍 %s", v.City)
	}
	if v.Description != "" {
		fmt.Fprintf(&sb, "\n\n%s", v.Description)
	}
	fmt.Fprintf(&sb, "\n\n%d annonce(s)", v.AnnoncesCount)

	screen := Screen{Text: sb.String()}
	for _, a := range v.Annonces {
		screen.Links = append(screen.Links, LinkButton{Label: a.Title, AnnonceID: a.ID, Slug: a.Slug})
	}
	return screen
}

func feedScreen(annonces []domain.Annonce) Screen {
	if len(annonces) == 0 {
		return Screen{Text: "Aucune annonce pour le moment."}
	}
	screen := Screen{Text: "Dernières annonces"}
	for _, a := range annonces {
		label := a.Title
		if a.Price > 0 {
			label = fmt.Sprintf("%s · %s", a.Title, formatPrice(a.Price, a.Currency))
		}
		screen.Links = append(screen.Links, LinkButton{Label: label, AnnonceID: a.ID, Slug: a.Slug})
	}
	return screen
}

var namedScreenTexts = map[domain.ScreenName]string{
	domain.ScreenLogin:    "Connexion\n\nConnectez-vous pour aimer des annonces et gérer votre vitrine.",
	domain.ScreenRegister: "Inscription\n\nCréez un compte pour publier vos annonces.",
	domain.ScreenSettings: "Paramètres\n\nNotifications, langue et compte.",
}

func namedScreen(name domain.ScreenName) Screen {
	text, ok := namedScreenTexts[name]
	if !ok {
		text = string(name)
	}
	return Screen{Text: text}
}

func formatPrice(price float64, currency string) string {
	if currency == "" {
		currency = "EUR"
	}
	return fmt.Sprintf("%.2f %s", price, currency)
}
