/*
Package token holds a minimal allowance ledger standing in for the token
contract collaborator. The settlement flow only needs approve/allowance and
the finalizer-side transferFrom that consumes the granted allowance.
*/
package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/guardline-io/guardline/types"
)

// ApproveAttributes is the input of the approve action the settlement
// executor wraps into the guarded call.
type ApproveAttributes struct {
	_       struct{} `cbor:",toarray"`
	Spender types.Bytes
	Amount  uint64
}

var (
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientBalance   = errors.New("insufficient balance")
)

// Ledger tracks balances and allowances per token address.
type Ledger struct {
	mu         sync.RWMutex
	balances   map[string]*uint256.Int
	allowances map[string]*uint256.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   map[string]*uint256.Int{},
		allowances: map[string]*uint256.Int{},
	}
}

// Credit mints amount to the holder, test and bootstrap helper.
func (l *Ledger) Credit(token, holder common.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey(token, holder)
	l.balances[k] = new(uint256.Int).Add(l.balance(k), uint256.NewInt(amount))
}

func (l *Ledger) BalanceOf(token, holder common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance(balanceKey(token, holder)).Clone()
}

// Approve sets (not increments) the spender's allowance over the owner's
// funds.
func (l *Ledger) Approve(token, owner, spender common.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey(token, owner, spender)] = uint256.NewInt(amount)
}

func (l *Ledger) Allowance(token, owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.allowances[allowanceKey(token, owner, spender)]; ok {
		return a.Clone()
	}
	return uint256.NewInt(0)
}

// TransferFrom moves amount of the owner's funds to the recipient, consuming
// the spender's allowance. This is the finalizer-side pull that completes a
// settlement.
func (l *Ledger) TransferFrom(token, owner, spender, to common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	value := uint256.NewInt(amount)
	ak := allowanceKey(token, owner, spender)
	allowance, ok := l.allowances[ak]
	if !ok || allowance.Lt(value) {
		return fmt.Errorf("%w: spender %s", ErrInsufficientAllowance, spender.Hex())
	}
	bk := balanceKey(token, owner)
	balance := l.balance(bk)
	if balance.Lt(value) {
		return fmt.Errorf("%w: owner %s", ErrInsufficientBalance, owner.Hex())
	}
	l.allowances[ak] = new(uint256.Int).Sub(allowance, value)
	l.balances[bk] = new(uint256.Int).Sub(balance, value)
	tk := balanceKey(token, to)
	l.balances[tk] = new(uint256.Int).Add(l.balance(tk), value)
	return nil
}

func (l *Ledger) balance(key string) *uint256.Int {
	if b, ok := l.balances[key]; ok {
		return b
	}
	return uint256.NewInt(0)
}

func balanceKey(token, holder common.Address) string {
	return string(token.Bytes()) + string(holder.Bytes())
}

func allowanceKey(token, owner, spender common.Address) string {
	return string(token.Bytes()) + string(owner.Bytes()) + string(spender.Bytes())
}
