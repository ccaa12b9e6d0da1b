package main

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/types"
)

func shortOwner(o types.Owner) string {
	if len(o) > 16 {
		return string(o[:8]) + "…" + string(o[len(o)-8:])
	}
	return string(o)
}

func shortID(id types.OfferID) string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}

// printIdentity shows the key file and the owner identity it signs as.
func printIdentity(title, keyFile string, owner types.Owner) {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	body := pterm.Sprintfln("Key file: %s", keyFile) +
		pterm.Sprintf("Owner:    %s", pterm.LightCyan(string(owner)))
	pbox.WithTitle(pterm.LightYellow("|" + title + "|")).WithTitleTopCenter().Println(body)
}

func printSwapResult(res types.SwapResult, mine, theirs types.Square) {
	switch res.Status {
	case types.SwapCompleted:
		pterm.Success.Printfln("Swap completed: you now hold %s in place of %s", pterm.LightCyan(string(theirs)), mine)
	default:
		pterm.Info.Printfln("Swap offer recorded, waiting for the other owner to reciprocate")
	}
	pterm.Printfln("Offer ID: %s", res.OfferID)
}

func printReleased(squares []types.Square) {
	if len(squares) == 0 {
		pterm.Success.Println("Account deleted, no squares were held")
		return
	}
	pterm.Success.Printfln("Account deleted, released %d squares:", len(squares))
	for _, sq := range squares {
		pterm.Printfln("  %s", sq)
	}
}

func printInventory(owner types.Owner, squares []types.Square) error {
	if len(squares) == 0 {
		pterm.Info.Printfln("%s holds no squares", shortOwner(owner))
		return nil
	}
	data := pterm.TableData{{"#", "Square"}}
	for i, sq := range squares {
		data = append(data, []string{fmt.Sprint(i + 1), string(sq)})
	}
	pterm.DefaultSection.Printfln("Inventory of %s", shortOwner(owner))
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printOffers(owner types.Owner, offers []types.SwapOffer) error {
	if len(offers) == 0 {
		pterm.Info.Printfln("No pending offers for %s", shortOwner(owner))
		return nil
	}
	data := pterm.TableData{{"Offer", "Direction", "Gives", "For", "With", "Created"}}
	for _, o := range offers {
		direction, peer := "outgoing", o.Counterparty
		if o.Counterparty == owner {
			direction, peer = "incoming", o.Requester
		}
		data = append(data, []string{
			shortID(o.ID),
			direction,
			string(o.RequesterSquare),
			string(o.CounterpartySquare),
			shortOwner(peer),
			o.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printEvents(events []types.Event) error {
	if len(events) == 0 {
		pterm.Info.Println("No events")
		return nil
	}
	data := pterm.TableData{{"Seq", "Type", "Actor", "Square", "Counterparty", "Their square", "At"}}
	for _, ev := range events {
		data = append(data, []string{
			fmt.Sprint(ev.Seq),
			string(ev.Type),
			shortOwner(ev.Actor),
			string(ev.Square),
			shortOwner(ev.Counterparty),
			string(ev.CounterpartySquare),
			ev.At.Format("2006-01-02 15:04:05"),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// printError renders ledger rejections with their code.
func printError(err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		pterm.Error.Printfln("%s: %s", appErr.Code, appErr.Message)
		return
	}
	pterm.Error.Println(err.Error())
}
