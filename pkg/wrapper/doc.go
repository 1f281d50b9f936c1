// Package wrapper intercepts calls to functions and accesses to object
// members, records every interaction in an ordered history, and lets
// tests script behavior (triggers and actions) and check outcomes
// (expectations).
//
// A Wrapper wraps exactly one target: a Func, a Go function variable
// (WrapVar), or a single member of an Object. Each intercepted call, get
// or set produces an Operation. Triggers registered on the Wrapper run
// against every Operation before and after the underlying target runs,
// and the finished Operation is appended to the Wrapper's HistoryList.
//
// Expectations never fail a test by themselves: failures are logged on
// the Wrapper and reported together by ExpectReportAllFailures, unless
// the Wrapper is configured to fail fast.
package wrapper
