package domain

// RouteKind tags the variant held by a RouteDestination.
type RouteKind int

const (
	Unhandled RouteKind = iota
	AnnonceDetail
	VitrineDetail
	NamedScreen
)

func (k RouteKind) String() string {
	switch k {
	case AnnonceDetail:
		return "AnnonceDetail"
	case VitrineDetail:
		return "VitrineDetail"
	case NamedScreen:
		return "NamedScreen"
	default:
		return "Unhandled"
	}
}

// ScreenName identifies a screen reachable through the named-route table.
type ScreenName string

const (
	ScreenLogin    ScreenName = "Login"
	ScreenRegister ScreenName = "Register"
	ScreenSettings ScreenName = "Settings"
)

// ScreenMain is the root of every navigation stack.
const ScreenMain = "Main"

// RouteDestination is the result of classifying a deep link.
// Slug is set for the detail kinds, Screen for NamedScreen.
type RouteDestination struct {
	Kind   RouteKind
	Slug   string
	Screen ScreenName
}

func UnhandledDestination() RouteDestination {
	return RouteDestination{Kind: Unhandled}
}

func AnnonceDestination(slug string) RouteDestination {
	return RouteDestination{Kind: AnnonceDetail, Slug: slug}
}

func VitrineDestination(slug string) RouteDestination {
	return RouteDestination{Kind: VitrineDetail, Slug: slug}
}

func ScreenDestination(name ScreenName) RouteDestination {
	return RouteDestination{Kind: NamedScreen, Screen: name}
}

// IsHandled reports whether the destination leads anywhere.
func (d RouteDestination) IsHandled() bool {
	return d.Kind != Unhandled
}

// Route is one entry of a navigation stack.
type Route struct {
	Name   string
	Params map[string]string
}

// NavigationState is the stack installed by a navigation reset, root first.
type NavigationState struct {
	Routes []Route
}

// Top returns the screen that ends up visible.
func (s NavigationState) Top() Route {
	if len(s.Routes) == 0 {
		return Route{Name: ScreenMain}
	}
	return s.Routes[len(s.Routes)-1]
}

// ResetStateFor builds the two-level stack for a handled destination:
// the main tabbed shell as root, then the destination screen.
func ResetStateFor(d RouteDestination) NavigationState {
	root := Route{Name: ScreenMain}
	switch d.Kind {
	case AnnonceDetail:
		return NavigationState{Routes: []Route{root, {Name: d.Kind.String(), Params: map[string]string{"slug": d.Slug}}}}
	case VitrineDetail:
		return NavigationState{Routes: []Route{root, {Name: d.Kind.String(), Params: map[string]string{"slug": d.Slug}}}}
	case NamedScreen:
		return NavigationState{Routes: []Route{root, {Name: string(d.Screen)}}}
	default:
		return NavigationState{Routes: []Route{root}}
	}
}
