package game

// BuildSnapshot renders the market as one player is allowed to see it at
// a given tick. Exact health and drift stay hidden unless the viewer
// holds an active Insight; covert offers only appear at night.
func (ld *Ledger) BuildSnapshot(playerName string, tick int64, phase Phase, clock string, online int, gameOver bool, survivor string) Snapshot {
	snap := Snapshot{
		Tick:          tick,
		Phase:         phase,
		Clock:         clock,
		PlayersOnline: online,
		Player:        playerName,
		Events:        ld.RecentEvents(),
		GameOver:      gameOver,
		Survivor:      survivor,
	}

	p, known := ld.players[playerName]
	insight := known && p.InsightUntil > tick

	for _, c := range ld.companies {
		view := CompanyView{
			Symbol:      c.Symbol,
			DisplayName: c.DisplayName,
			Sector:      c.Sector,
			PriceMicros: c.PriceMicros,
			Health:      CategorizeHealth(c.Health, c.Eliminated),
			Eliminated:  c.Eliminated,
			Available:   c.AvailableShares(),
		}
		if insight && !c.Eliminated {
			view.Insight = &CompanyInsight{
				Health:     c.Health,
				Drift:      c.Drift,
				Volatility: c.Volatility,
			}
		}
		snap.Companies = append(snap.Companies, view)
	}

	if !known {
		return snap
	}

	snap.CashMicros = p.CashMicros
	snap.NetWorthMicros = ld.netWorth(p)
	for _, c := range ld.companies {
		if shares := p.Holdings[c.ID]; shares > 0 {
			snap.Holdings = append(snap.Holdings, HoldingView{
				Symbol:      c.Symbol,
				Shares:      shares,
				ValueMicros: shares * c.PriceMicros,
			})
		}
	}
	snap.PendingCovert = p.PendingCovert
	if phase == PhaseNight && !gameOver {
		snap.Offers = ld.Offers(playerName)
	}
	return snap
}
