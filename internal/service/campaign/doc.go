// Package campaign implements the lifecycle campaign engine.
//
// The service layer contains the eligibility evaluators for the three
// campaigns (reactivation, birthday, vip) and the pass runner that walks the
// customer base, consults the dedup ledger, and issues coupons and outbound
// messages. It depends on repository interfaces defined in this package and
// should never import from api/.
//
// Repository implementations live in repository/postgres/.
package campaign
