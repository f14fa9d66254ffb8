// Package accounts implements a user account backend: registration with
// email verification, login with access/refresh JWT pairs, password reset,
// admin-driven invitations, role management, and profile records. Commands
// mutate state through bun repositories inside transactions; domain events
// fan out to mail subscribers after the write completes.
package accounts
