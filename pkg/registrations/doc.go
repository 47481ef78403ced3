// Package registrations reviews company registration requests.
//
// Anyone may submit a request. A System Administrator approves it, which creates
// the company and invites the submitter as its COMPANY_OWNER, or rejects it with
// an optional reason. A decided request never changes again.
package registrations
