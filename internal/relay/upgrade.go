package relay

// CheckUpgrade implements spec.md §4.1: the upgrade middleware. It
// inspects the Connection and Upgrade request headers and either passes
// through unchanged (upgraded=false, err=nil), marks the cycle as an
// upgrade candidate (upgraded=true, err=nil), or rejects a malformed
// upgrade attempt before any backend is contacted (a non-nil 400 err).
//
// The specific protocol token in Upgrade is deliberately not
// interpreted here; the response relay decides later whether the
// backend actually honored the upgrade with a 101.
func CheckUpgrade(headers HeaderList) (upgraded bool, err *Error) {
	connection, ok := headers.Get("Connection")
	if !ok || !hasToken(connection, "upgrade") {
		return false, nil
	}

	upgrade, ok := headers.Get("Upgrade")
	if !ok || len(tokens(upgrade)) == 0 {
		return false, newError(KindClientError, 400, "Connection: upgrade asserted without a well-formed Upgrade header", nil)
	}

	return true, nil
}
