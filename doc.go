// Package identity provisions and authenticates NAS accounts: end-users of the
// health tracking apps and administrators of the back office.
//
// Registration lifecycle:
//   - An email address moves through NONE, PRE_REGISTERED, PROVISIONAL and
//     ACTIVE. RegistrationStateOf derives the state from the stored rows and
//     the registration handlers only apply transitions listed in the
//     registration transition table.
//   - Verification tokens are single use, time bounded and owned by exactly
//     one OwnerRef. Issuing a token deletes any previous token of the same type
//     for the same owner inside the same transaction.
//   - Consuming a registration token twice returns the same account. Races
//     between concurrent consumers are settled by the unique email constraint
//     and the loser falls back to the replay path.
//
// Secondary flows:
//   - Email change stages the new address behind a PendingEmailChange row and
//     copies it onto the account once the token is verified.
//   - Password reset tokens are never stored. They are derived from a secret
//     and a fingerprint of the account credential state, so changing the
//     password (or logging in) invalidates every outstanding reset link.
//
// Side effects:
//   - Notifier and ActivitySink calls run after the transaction commits and are
//     best-effort: failures are logged and never roll back a state change.
package identity
