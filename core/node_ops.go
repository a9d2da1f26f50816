package core

import (
	"math/big"

	"sentechain/crypto"
	"sentechain/native/credential"
	"sentechain/native/lending"
	"sentechain/native/reputation"
)

// Reputation registry. Operations without a result return the height of the
// commit they produced.

func (n *Node) CreateProfile(caller, principal crypto.Address, initialScore int64) (uint64, error) {
	return n.Mutate("reputation_createProfile", func() error {
		return n.registry.CreateProfile(caller, principal, initialScore)
	})
}

func (n *Node) UpdateScore(caller, principal crypto.Address, newScore int64) (uint64, error) {
	return n.Mutate("reputation_updateScore", func() error {
		return n.registry.UpdateScore(caller, principal, newScore)
	})
}

func (n *Node) RecordLoan(caller, principal crypto.Address) (uint64, error) {
	return n.Mutate("reputation_recordLoan", func() error {
		return n.registry.RecordLoan(caller, principal)
	})
}

func (n *Node) RecordRepayment(caller, principal crypto.Address) (uint64, error) {
	return n.Mutate("reputation_recordRepayment", func() error {
		return n.registry.RecordRepayment(caller, principal)
	})
}

func (n *Node) RecordDefault(caller, principal crypto.Address) (uint64, error) {
	return n.Mutate("reputation_recordDefault", func() error {
		return n.registry.RecordDefault(caller, principal)
	})
}

func (n *Node) AuthorizeOracle(caller, oracle crypto.Address) (uint64, error) {
	return n.Mutate("reputation_authorizeOracle", func() error {
		return n.registry.AuthorizeOracle(caller, oracle)
	})
}

func (n *Node) RevokeOracle(caller, oracle crypto.Address) (uint64, error) {
	return n.Mutate("reputation_revokeOracle", func() error {
		return n.registry.RevokeOracle(caller, oracle)
	})
}

func (n *Node) Score(principal crypto.Address) (score uint64, err error) {
	err = n.View(func() error {
		score, err = n.registry.GetScore(principal)
		return err
	})
	return score, err
}

// Profile returns the stored profile. Principals without one get an
// inactive zero profile.
func (n *Node) Profile(principal crypto.Address) (profile *reputation.Profile, err error) {
	err = n.View(func() error {
		profile, err = n.registry.GetProfile(principal)
		return err
	})
	return profile, err
}

func (n *Node) IsEligible(principal crypto.Address, minScore uint64) (ok bool, err error) {
	err = n.View(func() error {
		ok, err = n.registry.IsEligibleForLoan(principal, minScore)
		return err
	})
	return ok, err
}

func (n *Node) RepaymentRate(principal crypto.Address) (rate uint64, err error) {
	err = n.View(func() error {
		rate, err = n.registry.GetRepaymentRate(principal)
		return err
	})
	return rate, err
}

func (n *Node) IsOracle(addr crypto.Address) (ok bool, err error) {
	err = n.View(func() error {
		ok, err = n.registry.IsOracle(addr)
		return err
	})
	return ok, err
}

// Lending pool.

func (n *Node) Deposit(lender crypto.Address, amount *big.Int) (pos *lending.LenderPosition, err error) {
	_, err = n.Mutate("lending_deposit", func() error {
		pos, err = n.pool.Deposit(lender, amount)
		return err
	})
	return pos, err
}

func (n *Node) Withdraw(lender crypto.Address, amount *big.Int) (pos *lending.LenderPosition, err error) {
	_, err = n.Mutate("lending_withdraw", func() error {
		pos, err = n.pool.Withdraw(lender, amount)
		return err
	})
	return pos, err
}

func (n *Node) RequestLoan(borrower crypto.Address, amount *big.Int) (loan *lending.Loan, err error) {
	_, err = n.Mutate("lending_requestLoan", func() error {
		loan, err = n.pool.RequestLoan(borrower, amount)
		return err
	})
	return loan, err
}

// RepayLoan settles the loan. A repayment attempted after the grace period
// commits the default and returns the loan with lending.ErrLoanDefaulted.
func (n *Node) RepayLoan(caller, borrower crypto.Address, loanID uint64) (loan *lending.Loan, err error) {
	_, err = n.Mutate("lending_repayLoan", func() error {
		loan, err = n.pool.RepayLoan(caller, borrower, loanID)
		return err
	})
	return loan, err
}

func (n *Node) MarkDefault(caller, borrower crypto.Address, loanID uint64) (loan *lending.Loan, err error) {
	_, err = n.Mutate("lending_markDefault", func() error {
		loan, err = n.pool.MarkDefault(caller, borrower, loanID)
		return err
	})
	return loan, err
}

func (n *Node) AvailableLiquidity() (amount *big.Int, err error) {
	err = n.View(func() error {
		amount, err = n.pool.AvailableLiquidity()
		return err
	})
	return amount, err
}

func (n *Node) UtilizationRate() (rate uint64, err error) {
	err = n.View(func() error {
		rate, err = n.pool.UtilizationRate()
		return err
	})
	return rate, err
}

func (n *Node) Loan(borrower crypto.Address, loanID uint64) (loan *lending.Loan, err error) {
	err = n.View(func() error {
		loan, err = n.pool.GetLoan(borrower, loanID)
		return err
	})
	return loan, err
}

func (n *Node) Loans(borrower crypto.Address) (loans []*lending.Loan, err error) {
	err = n.View(func() error {
		loans, err = n.pool.GetLoans(borrower)
		return err
	})
	return loans, err
}

// AllLoans returns every loan of every borrower, grouped by borrower in
// first-borrow order.
func (n *Node) AllLoans() (loans []*lending.Loan, err error) {
	err = n.View(func() error {
		borrowers, err := n.pool.Borrowers()
		if err != nil {
			return err
		}
		for _, b := range borrowers {
			list, err := n.pool.GetLoans(b)
			if err != nil {
				return err
			}
			loans = append(loans, list...)
		}
		return nil
	})
	return loans, err
}

func (n *Node) Position(lender crypto.Address) (pos *lending.LenderPosition, err error) {
	err = n.View(func() error {
		pos, err = n.pool.GetLenderPosition(lender)
		return err
	})
	return pos, err
}

func (n *Node) Totals() (totals *lending.Totals, err error) {
	err = n.View(func() error {
		totals, err = n.pool.Totals()
		return err
	})
	return totals, err
}

func (n *Node) Quote(borrower crypto.Address, amount *big.Int) (q *lending.Quote, err error) {
	err = n.View(func() error {
		q, err = n.pool.Quote(borrower, amount)
		return err
	})
	return q, err
}

func (n *Node) OverdueLoans() (loans []*lending.Loan, err error) {
	err = n.View(func() error {
		loans, err = n.pool.OverdueLoans()
		return err
	})
	return loans, err
}

// Credential issuer.

func (n *Node) MintCredential(caller, principal crypto.Address, scoreAtMint, repayments uint64) (cred *credential.Credential, err error) {
	_, err = n.Mutate("credential_mint", func() error {
		cred, err = n.issuer.Mint(caller, principal, scoreAtMint, repayments)
		return err
	})
	return cred, err
}

func (n *Node) TransferCredential(caller, from, to crypto.Address, tokenID uint64) (uint64, error) {
	return n.Mutate("credential_transfer", func() error {
		return n.issuer.Transfer(caller, from, to, tokenID)
	})
}

func (n *Node) ApproveCredential(caller, spender crypto.Address, tokenID uint64) (uint64, error) {
	return n.Mutate("credential_approve", func() error {
		return n.issuer.Approve(caller, spender, tokenID)
	})
}

func (n *Node) AuthorizeMinter(caller, minter crypto.Address) (uint64, error) {
	return n.Mutate("credential_authorizeMinter", func() error {
		return n.issuer.AuthorizeMinter(caller, minter)
	})
}

func (n *Node) RevokeMinter(caller, minter crypto.Address) (uint64, error) {
	return n.Mutate("credential_revokeMinter", func() error {
		return n.issuer.RevokeMinter(caller, minter)
	})
}

func (n *Node) HasCredential(principal crypto.Address) (ok bool, err error) {
	err = n.View(func() error {
		ok, err = n.issuer.HasCredential(principal)
		return err
	})
	return ok, err
}

// Credential returns the credential held by principal.
func (n *Node) Credential(principal crypto.Address) (cred *credential.Credential, err error) {
	err = n.View(func() error {
		cred, err = n.issuer.CredentialOf(principal)
		return err
	})
	return cred, err
}

func (n *Node) CredentialByID(tokenID uint64) (cred *credential.Credential, err error) {
	err = n.View(func() error {
		cred, err = n.issuer.Get(tokenID)
		return err
	})
	return cred, err
}

func (n *Node) CredentialSupply() (supply uint64, err error) {
	err = n.View(func() error {
		supply, err = n.issuer.TotalSupply()
		return err
	})
	return supply, err
}

// Value ledger.

func (n *Node) BalanceOf(addr crypto.Address) (amount *big.Int, err error) {
	err = n.View(func() error {
		amount, err = n.token.BalanceOf(addr)
		return err
	})
	return amount, err
}

func (n *Node) Allowance(owner, spender crypto.Address) (amount *big.Int, err error) {
	err = n.View(func() error {
		amount, err = n.token.Allowance(owner, spender)
		return err
	})
	return amount, err
}

func (n *Node) TotalSupply() (amount *big.Int, err error) {
	err = n.View(func() error {
		amount, err = n.token.TotalSupply()
		return err
	})
	return amount, err
}

func (n *Node) Transfer(from, to crypto.Address, amount *big.Int) (uint64, error) {
	return n.Mutate("token_transfer", func() error {
		return n.token.Transfer(from, to, amount)
	})
}

func (n *Node) Approve(owner, spender crypto.Address, amount *big.Int) (uint64, error) {
	return n.Mutate("token_approve", func() error {
		return n.token.Approve(owner, spender, amount)
	})
}

func (n *Node) Mint(caller, to crypto.Address, amount *big.Int) (uint64, error) {
	return n.Mutate("token_mint", func() error {
		return n.token.Mint(caller, to, amount)
	})
}
