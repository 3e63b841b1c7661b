package sim

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// Digest hashes every field of s in a fixed order. Two states have the same
// digest iff they are bit-identical, floats included.
func Digest(s State) string {
	d := digester{h: sha256.New()}
	d.u64(s.Tick)
	for i := range s.Players {
		p := &s.Players[i]
		d.f64(p.Pos[0])
		d.f64(p.Pos[1])
		d.f64(p.Vel[0])
		d.f64(p.Vel[1])
		d.i64(int64(p.Facing))
		d.i64(int64(p.Health))
		d.i64(int64(p.Lives))
		d.u64(uint64(p.Flags))
		d.u64(uint64(p.Weapon))
		d.i64(int64(p.Ammo))
		d.i64(int64(p.JumpsLeft))
		d.boolean(p.Grounded)
		d.i64(int64(p.StandingOn))
		d.i64(int64(p.StoodOnBy))
		d.i64(int64(p.Cooldown))
		d.i64(int64(p.Respawn))
		d.i64(int64(p.InvincibleFor))
		d.i64(int64(p.TauntFor))
		d.i64(int64(p.StunFor))
	}
	d.u64(uint64(len(s.Projectiles)))
	for _, pr := range s.Projectiles {
		d.u64(uint64(pr.ID))
		d.i64(int64(pr.Owner))
		d.u64(uint64(pr.Weapon))
		d.f64(pr.Pos[0])
		d.f64(pr.Pos[1])
		d.f64(pr.Vel[0])
		d.f64(pr.Vel[1])
		d.i64(int64(pr.Damage))
		d.i64(int64(pr.TTL))
	}
	d.u64(uint64(len(s.Pickups)))
	for _, pk := range s.Pickups {
		d.u64(uint64(pk.ID))
		d.u64(uint64(pk.Weapon))
		d.i64(int64(pk.Ammo))
		d.f64(pk.Pos[0])
		d.f64(pk.Pos[1])
		d.i64(int64(pk.Lock))
	}
	d.f64(s.Arena.MinX)
	d.f64(s.Arena.MaxX)
	d.f64(s.Arena.KillY)
	d.boolean(s.MatchOver)
	d.i64(int64(s.Winner))
	d.boolean(s.SuddenDeath)
	d.i64(int64(s.DeathLinger))
	d.i64(int64(s.PickupTimer))
	d.u64(s.RNG)
	d.u64(uint64(s.NextID))
	return hex.EncodeToString(d.h.Sum(nil))
}

type digester struct {
	h   hash.Hash
	tmp [8]byte
}

func (d *digester) u64(v uint64) {
	binary.LittleEndian.PutUint64(d.tmp[:], v)
	d.h.Write(d.tmp[:])
}

func (d *digester) i64(v int64)   { d.u64(uint64(v)) }
func (d *digester) f64(v float64) { d.u64(math.Float64bits(v)) }

func (d *digester) boolean(v bool) {
	if v {
		d.h.Write([]byte{1})
		return
	}
	d.h.Write([]byte{0})
}
