package model

// Routes the portal redirects between.
const (
	RouteLanding        = "/"
	RouteLogin          = "/login"
	RouteSignup         = "/signup"
	RouteLogout         = "/logout"
	RouteAdminDashboard = "/dashboard"
	RouteAdmin          = "/admin"
	RouteProfile        = "/profile"
	RouteProjects       = "/projects"
	RouteContact        = "/contactus"
	RouteCertificate    = "/certificate"
)

// RedirectForRole is the post-authentication target for password sign-up and login.
func RedirectForRole(r Role) string {
	if r == RoleAdmin {
		return RouteAdminDashboard
	}
	return RouteLanding
}
