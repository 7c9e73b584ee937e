package game

import (
	"math/rand"
	"testing"
)

func TestChooseActionIsAlwaysLegal(t *testing.T) {
	o := NewOpponent(rand.New(rand.NewSource(7)), 5)
	ledger := NewLedger(5)
	histories := [][]Action{
		nil,
		{ActionShoot, ActionShoot},
		{ActionShoot, ActionShield},
		{ActionShield, ActionShield, ActionShield},
		{ActionReload},
	}
	for _, d := range []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard} {
		for own := 0; own <= 5; own++ {
			for opp := 0; opp <= 5; opp++ {
				for _, h := range histories {
					for i := 0; i < 20; i++ {
						a := o.ChooseAction(d, AIState{OwnBullets: own, OpponentBullets: opp, OpponentHistory: h})
						if !ledger.Legal(own, a) {
							t.Fatalf("%s chose %s holding %d bullets", d, a, own)
						}
					}
				}
			}
		}
	}
}

func TestEmptyMachineNeverShoots(t *testing.T) {
	o := NewOpponent(rand.New(rand.NewSource(1)), 5)
	for _, d := range []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard} {
		seen := map[Action]bool{}
		for i := 0; i < 200; i++ {
			seen[o.ChooseAction(d, AIState{OwnBullets: 0, OpponentBullets: 2})] = true
		}
		if seen[ActionShoot] {
			t.Errorf("%s shot with 0 bullets", d)
		}
	}
}

func TestHardShieldsWhenEmptyAgainstArmed(t *testing.T) {
	o := NewOpponent(rand.New(rand.NewSource(3)), 5)
	if a := o.ChooseAction(DifficultyHard, AIState{OwnBullets: 0, OpponentBullets: 3}); a != ActionShield {
		t.Errorf("hard chose %s, want shield", a)
	}
	if a := o.ChooseAction(DifficultyHard, AIState{OwnBullets: 0, OpponentBullets: 0}); a != ActionReload {
		t.Errorf("hard chose %s with both empty, want reload", a)
	}
}

func TestHardShieldsAfterFreshReload(t *testing.T) {
	o := NewOpponent(rand.New(rand.NewSource(3)), 5)
	a := o.ChooseAction(DifficultyHard, AIState{
		OwnBullets:      2,
		OpponentBullets: 0,
		OpponentHistory: []Action{ActionShield, ActionReload},
	})
	if a != ActionShield {
		t.Errorf("hard chose %s, want shield", a)
	}
}

func TestHardFavorsShieldAgainstRepeatedShots(t *testing.T) {
	o := NewOpponent(rand.New(rand.NewSource(11)), 5)
	shields := 0
	for i := 0; i < 500; i++ {
		a := o.ChooseAction(DifficultyHard, AIState{
			OwnBullets:      1,
			OpponentBullets: 1,
			OpponentHistory: []Action{ActionShoot, ActionShoot},
		})
		if a == ActionShield {
			shields++
		}
	}
	if shields < 200 {
		t.Errorf("hard shielded %d/500 times against repeated shots, want a clear majority", shields)
	}
}

func TestDifficultiesProduceVariety(t *testing.T) {
	o := NewOpponent(rand.New(rand.NewSource(5)), 5)
	for _, d := range []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard} {
		seen := map[Action]bool{}
		for i := 0; i < 300; i++ {
			seen[o.ChooseAction(d, AIState{OwnBullets: 3, OpponentBullets: 3})] = true
		}
		if len(seen) != 3 {
			t.Errorf("%s only produced %v", d, seen)
		}
	}
}

func TestParseDifficulty(t *testing.T) {
	if d, err := ParseDifficulty(""); err != nil || d != DifficultyNormal {
		t.Errorf("empty difficulty = %s, %v", d, err)
	}
	if d, err := ParseDifficulty("HARD"); err != nil || d != DifficultyHard {
		t.Errorf("HARD = %s, %v", d, err)
	}
	if _, err := ParseDifficulty("nightmare"); err == nil {
		t.Errorf("expected error for unknown difficulty")
	}
}
